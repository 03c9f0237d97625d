// Package spaced_repetition is the local backend behind the review feed: it
// picks the next due question and records answers with SM-2.
package spaced_repetition

import (
	"context"
	"fmt"
	"time"

	"github.com/example/scry/internal/logger"
	"github.com/example/scry/pkg/models"
)

const module = "SpacedRepetition"

// historyLimit is how many past attempts travel with a candidate
const historyLimit = 10

type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*models.Question, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Question, error)
}

type ProgressStore interface {
	Get(ctx context.Context, userID, questionID int64) (*models.SchedulerState, error)
	ListByUser(ctx context.Context, userID int64) (map[int64]models.SchedulerState, error)
	Upsert(ctx context.Context, st *models.SchedulerState) error
}

type InteractionStore interface {
	Create(ctx context.Context, in *models.Interaction) error
	ListByQuestion(ctx context.Context, userID, questionID int64, limit int) ([]models.Interaction, error)
}

// AnswerRequest is one submitted answer
type AnswerRequest struct {
	QuestionID  int64
	UserID      int64
	Answer      string
	IsCorrect   bool
	TimeSpentMs int64
	SessionID   string
}

// AnswerOutcome is the schedule after an answer
type AnswerOutcome struct {
	NextReview    time.Time
	ScheduledDays int
	NewState      models.SchedulerState
}

type Engine struct {
	questions    QuestionStore
	progress     ProgressStore
	interactions InteractionStore
	sm2          *SM2
	log          logger.ILogger
	now          func() time.Time
}

func NewEngine(questions QuestionStore, progress ProgressStore, interactions InteractionStore, sm2 *SM2, log logger.ILogger) *Engine {
	return &Engine{
		questions:    questions,
		progress:     progress,
		interactions: interactions,
		sm2:          sm2,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetNextDue returns the highest priority due question of the user, or nil
// when nothing is due. Repeated calls without answers in between return
// identical candidates.
func (e *Engine) GetNextDue(ctx context.Context, userID int64) (*models.ReviewCandidate, error) {
	questions, err := e.questions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	states, err := e.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]dueItem, 0, len(questions))
	for _, q := range questions {
		st, ok := states[q.ID]
		if !ok {
			// never reviewed: due since creation
			st = models.NewSchedulerState(userID, q.ID, q.CreatedAt)
		}
		items = append(items, dueItem{question: q, state: st})
	}

	due := selectDue(items, e.now())
	if len(due) == 0 {
		return nil, nil
	}
	next := due[0]

	history, err := e.interactions.ListByQuestion(ctx, userID, next.question.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	return &models.ReviewCandidate{
		Key:          next.question.Key(),
		Question:     next.question,
		Interactions: history,
		State:        next.state,
	}, nil
}

// CountMastered returns how many of the user's active questions need no
// attention for a while
func (e *Engine) CountMastered(ctx context.Context, userID int64) (int, error) {
	questions, err := e.questions.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	states, err := e.progress.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	mastered := 0
	for _, q := range questions {
		if st, ok := states[q.ID]; ok && e.sm2.IsMastered(&st) {
			mastered++
		}
	}
	return mastered, nil
}

// RecordAnswer stores the attempt and reschedules the question
func (e *Engine) RecordAnswer(ctx context.Context, req AnswerRequest) (*AnswerOutcome, error) {
	q, err := e.questions.GetByID(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if q.UserID != req.UserID {
		return nil, models.ErrNotAuthorized
	}
	if q.DeletedAt != nil {
		return nil, models.ErrAlreadyDeleted
	}

	now := e.now()
	in := &models.Interaction{
		UserID:      req.UserID,
		QuestionID:  req.QuestionID,
		Answer:      req.Answer,
		IsCorrect:   req.IsCorrect,
		TimeSpentMs: req.TimeSpentMs,
		SessionID:   req.SessionID,
		AttemptedAt: now,
	}
	if err := e.interactions.Create(ctx, in); err != nil {
		return nil, err
	}

	st, err := e.progress.Get(ctx, req.UserID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		fresh := models.NewSchedulerState(req.UserID, req.QuestionID, now)
		st = &fresh
	}

	quality := QualityFromAnswer(req.IsCorrect, req.TimeSpentMs)
	e.sm2.Process(st, quality, now)
	if err := e.progress.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to reschedule question %d: %w", req.QuestionID, err)
	}

	e.log.Info(module, "Answer recorded", map[string]interface{}{
		"user_id":     req.UserID,
		"question_id": req.QuestionID,
		"correct":     req.IsCorrect,
		"quality":     int(quality),
		"stage":       string(st.Stage),
		"next_review": st.NextReviewDate.Format(time.RFC3339),
	})

	return &AnswerOutcome{
		NextReview:    st.NextReviewDate,
		ScheduledDays: st.Interval,
		NewState:      *st,
	}, nil
}
