package models

import "time"

// Interaction records a single answer attempt for a question
type Interaction struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	QuestionID  int64     `json:"question_id" db:"question_id"`
	Answer      string    `json:"answer" db:"answer"`
	IsCorrect   bool      `json:"is_correct" db:"is_correct"`
	TimeSpentMs int64     `json:"time_spent_ms" db:"time_spent_ms"`
	SessionID   string    `json:"session_id" db:"session_id"`
	AttemptedAt time.Time `json:"attempted_at" db:"attempted_at"`
}
