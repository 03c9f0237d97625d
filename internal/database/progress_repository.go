package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/scry/pkg/models"
)

const progressColumns = `id, user_id, question_id, stage, interval_days, easiness_factor, repetitions,
	lapses, last_quality, consecutive_right, last_review_date, next_review_date`

// ProgressRepository stores the SM-2 state per user and question
type ProgressRepository struct {
	db *sqlx.DB
}

func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the state for a question, nil if it was never reviewed
func (r *ProgressRepository) Get(ctx context.Context, userID, questionID int64) (*models.SchedulerState, error) {
	var st models.SchedulerState
	query := r.db.Rebind(`SELECT ` + progressColumns + ` FROM question_progress WHERE user_id = ? AND question_id = ?`)
	err := r.db.GetContext(ctx, &st, query, userID, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &st, nil
}

// ListByUser returns every state of the user keyed by question id
func (r *ProgressRepository) ListByUser(ctx context.Context, userID int64) (map[int64]models.SchedulerState, error) {
	var states []models.SchedulerState
	query := r.db.Rebind(`SELECT ` + progressColumns + ` FROM question_progress WHERE user_id = ?`)
	if err := r.db.SelectContext(ctx, &states, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	out := make(map[int64]models.SchedulerState, len(states))
	for _, st := range states {
		out[st.QuestionID] = st
	}
	return out, nil
}

// Upsert writes st, inserting it on first review
func (r *ProgressRepository) Upsert(ctx context.Context, st *models.SchedulerState) error {
	query := r.db.Rebind(`
		INSERT INTO question_progress (
			user_id, question_id, stage, interval_days, easiness_factor, repetitions,
			lapses, last_quality, consecutive_right, last_review_date, next_review_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, question_id) DO UPDATE SET
			stage = excluded.stage,
			interval_days = excluded.interval_days,
			easiness_factor = excluded.easiness_factor,
			repetitions = excluded.repetitions,
			lapses = excluded.lapses,
			last_quality = excluded.last_quality,
			consecutive_right = excluded.consecutive_right,
			last_review_date = excluded.last_review_date,
			next_review_date = excluded.next_review_date
		RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query,
		st.UserID, st.QuestionID, string(st.Stage), st.Interval, st.EasinessFactor, st.Repetitions,
		st.Lapses, st.LastQuality, st.ConsecutiveRight, st.LastReviewDate, st.NextReviewDate.UTC(),
	).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
