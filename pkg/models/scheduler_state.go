package models

import "time"

// Stage is the maturity stage of a question in the SM-2 schedule
type Stage string

const (
	StageNew        Stage = "new"
	StageLearning   Stage = "learning"
	StageReview     Stage = "review"
	StageRelearning Stage = "relearning"
)

// SchedulerState tracks a user's progress with a specific question using the SM-2 algorithm
type SchedulerState struct {
	ID               int64      `json:"id" db:"id"`
	UserID           int64      `json:"user_id" db:"user_id"`
	QuestionID       int64      `json:"question_id" db:"question_id"`
	Stage            Stage      `json:"stage" db:"stage"`
	Interval         int        `json:"interval" db:"interval_days"`              // Current interval in days
	EasinessFactor   float64    `json:"easiness_factor" db:"easiness_factor"`     // SM-2 EF parameter
	Repetitions      int        `json:"repetitions" db:"repetitions"`             // Number of successful repetitions
	Lapses           int        `json:"lapses" db:"lapses"`                       // Number of times the question was forgotten
	LastQuality      int        `json:"last_quality" db:"last_quality"`           // 0-5 rating of last recall
	ConsecutiveRight int        `json:"consecutive_right" db:"consecutive_right"` // Number of consecutive correct recalls
	LastReviewDate   *time.Time `json:"last_review_date" db:"last_review_date"`
	NextReviewDate   time.Time  `json:"next_review_date" db:"next_review_date"`
}

// NewSchedulerState returns the state of a question that has never been reviewed
func NewSchedulerState(userID, questionID int64, now time.Time) SchedulerState {
	return SchedulerState{
		UserID:         userID,
		QuestionID:     questionID,
		Stage:          StageNew,
		EasinessFactor: 2.5,
		LastQuality:    3,
		NextReviewDate: now,
	}
}
