package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/scry/pkg/models"
)

// SM2 implements the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// Пороговое значение "хорошего ответа"
	PassThreshold QualityResponse
	// Максимальный интервал повторения в днях
	MaxInterval int
	// Интервалы в днях для первых успешных повторений
	InitialIntervals []int
	// How long a wrongly answered question waits before it is due again
	RequeueDelay time.Duration
}

// NewSM2 returns SM2 with default settings
func NewSM2(requeueDelay time.Duration) *SM2 {
	return &SM2{
		PassThreshold:    QualityCorrectDifficult,
		MaxInterval:      365,
		InitialIntervals: []int{0, 1, 3, 7, 15, 30},
		RequeueDelay:     requeueDelay,
	}
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// QualityFromAnswer grades an attempt by correctness and answer time
func QualityFromAnswer(isCorrect bool, timeSpentMs int64) QualityResponse {
	if !isCorrect {
		return QualityIncorrect
	}
	switch {
	case timeSpentMs > 0 && timeSpentMs <= 5000:
		return QualityPerfect
	case timeSpentMs > 0 && timeSpentMs <= 15000:
		return QualityCorrectHesitation
	default:
		return QualityCorrectDifficult
	}
}

// Process updates st after an answer of the given quality at now
func (sm *SM2) Process(st *models.SchedulerState, quality QualityResponse, now time.Time) {
	reviewed := now
	st.LastReviewDate = &reviewed
	st.LastQuality = int(quality)

	newEF := st.EasinessFactor + (0.1 - (5.0-float64(quality))*(0.08+(5.0-float64(quality))*0.02))
	if newEF < 1.3 {
		newEF = 1.3 // Не опускаем ниже 1.3
	}
	st.EasinessFactor = newEF

	if quality < sm.PassThreshold {
		if st.Repetitions > 0 || st.Stage == models.StageReview {
			st.Lapses++
			st.Stage = models.StageRelearning
		} else if st.Stage == models.StageNew {
			st.Stage = models.StageLearning
		}
		st.ConsecutiveRight = 0
		st.Repetitions = 0
		st.Interval = 0
		st.NextReviewDate = now.Add(sm.RequeueDelay)
		return
	}

	st.ConsecutiveRight++
	st.Repetitions++

	var next int
	if st.Repetitions < len(sm.InitialIntervals) {
		next = sm.InitialIntervals[st.Repetitions]
	} else {
		next = int(float64(st.Interval) * st.EasinessFactor)
	}
	if next > sm.MaxInterval {
		next = sm.MaxInterval
	}
	st.Interval = next

	if next == 0 {
		st.Stage = models.StageLearning
	} else {
		st.Stage = models.StageReview
	}
	st.NextReviewDate = now.AddDate(0, 0, next)
}

// IsMastered reports whether a question needs no attention for a while
func (sm *SM2) IsMastered(st *models.SchedulerState) bool {
	return st.Repetitions >= 5 &&
		st.LastQuality >= int(QualityCorrectHesitation) &&
		st.Interval >= 30
}

// dueItem pairs a question with its schedule
type dueItem struct {
	question models.Question
	state    models.SchedulerState
}

// selectDue keeps the items due at now, ordered by priority:
// never answered first, then hardest, then most overdue
func selectDue(items []dueItem, now time.Time) []dueItem {
	var due []dueItem
	for _, it := range items {
		if !it.state.NextReviewDate.After(now) {
			due = append(due, it)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].state, due[j].state
		if (a.Repetitions == 0) != (b.Repetitions == 0) {
			return a.Repetitions == 0
		}
		if a.EasinessFactor != b.EasinessFactor {
			return a.EasinessFactor < b.EasinessFactor
		}
		if !a.NextReviewDate.Equal(b.NextReviewDate) {
			return a.NextReviewDate.Before(b.NextReviewDate)
		}
		return due[i].question.ID < due[j].question.ID
	})
	return due
}
