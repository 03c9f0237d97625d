package spaced_repetition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/scry/pkg/models"
)

func TestQualityFromAnswer(t *testing.T) {
	tests := []struct {
		name      string
		correct   bool
		timeSpent int64
		want      QualityResponse
	}{
		{"wrong", false, 1000, QualityIncorrect},
		{"fast", true, 3000, QualityPerfect},
		{"hesitant", true, 12000, QualityCorrectHesitation},
		{"slow", true, 60000, QualityCorrectDifficult},
		{"untimed", true, 0, QualityCorrectDifficult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QualityFromAnswer(tt.correct, tt.timeSpent))
		})
	}
}

func TestSM2_CorrectAnswersGrowInterval(t *testing.T) {
	sm := NewSM2(0)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st := models.NewSchedulerState(1, 1, now)

	sm.Process(&st, QualityPerfect, now)
	assert.Equal(t, 1, st.Repetitions)
	assert.Equal(t, 1, st.Interval)
	assert.Equal(t, models.StageReview, st.Stage)
	assert.Equal(t, now.AddDate(0, 0, 1), st.NextReviewDate)
	assert.InDelta(t, 2.6, st.EasinessFactor, 1e-9)

	for i := 0; i < 5; i++ {
		sm.Process(&st, QualityPerfect, now)
	}
	assert.Equal(t, 6, st.Repetitions)
	assert.Greater(t, st.Interval, 30)
	assert.True(t, sm.IsMastered(&st))
}

func TestSM2_WrongAnswerRequeues(t *testing.T) {
	sm := NewSM2(30 * time.Second)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st := models.NewSchedulerState(1, 1, now)

	sm.Process(&st, QualityIncorrect, now)
	assert.Equal(t, models.StageLearning, st.Stage)
	assert.Equal(t, 0, st.Lapses)
	assert.Equal(t, now.Add(30*time.Second), st.NextReviewDate)

	sm.Process(&st, QualityPerfect, now)
	sm.Process(&st, QualityIncorrect, now)
	assert.Equal(t, models.StageRelearning, st.Stage)
	assert.Equal(t, 1, st.Lapses)
	assert.Equal(t, 0, st.Repetitions)
	assert.Equal(t, 0, st.ConsecutiveRight)
}

func TestSM2_EasinessFloor(t *testing.T) {
	sm := NewSM2(0)
	now := time.Now()
	st := models.NewSchedulerState(1, 1, now)

	for i := 0; i < 10; i++ {
		sm.Process(&st, QualityBlackout, now)
	}
	assert.Equal(t, 1.3, st.EasinessFactor)
}

func TestSelectDue_Priority(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	item := func(id int64, reps int, ef float64, due time.Time) dueItem {
		return dueItem{
			question: models.Question{ID: id},
			state:    models.SchedulerState{QuestionID: id, Repetitions: reps, EasinessFactor: ef, NextReviewDate: due},
		}
	}

	due := selectDue([]dueItem{
		item(1, 2, 2.5, now.Add(-time.Hour)),
		item(2, 0, 2.5, now.Add(-time.Minute)),
		item(3, 3, 1.8, now.Add(-time.Minute)),
		item(4, 1, 2.5, now.Add(time.Hour)),
		item(5, 2, 2.5, now.Add(-2*time.Hour)),
	}, now)

	var ids []int64
	for _, d := range due {
		ids = append(ids, d.question.ID)
	}
	assert.Equal(t, []int64{2, 3, 5, 1}, ids)
}
