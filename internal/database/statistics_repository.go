package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Summary is a user's review statistics
type Summary struct {
	Questions int `db:"questions"`
	Reviewed  int `db:"reviewed"`
	DueNow    int `db:"due_now"`
	Attempts  int `db:"attempts"`
	Correct   int `db:"correct"`
}

// Accuracy returns the share of correct attempts in percent
func (s Summary) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) * 100 / float64(s.Attempts)
}

// StatisticsRepository aggregates review statistics
type StatisticsRepository struct {
	db *sqlx.DB
}

func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// GetSummary counts the user's questions, due items and attempts. A question
// that was never reviewed counts as due.
func (r *StatisticsRepository) GetSummary(ctx context.Context, userID int64, now time.Time) (Summary, error) {
	var s Summary
	query := r.db.Rebind(`
		SELECT
			COUNT(*) AS questions,
			COUNT(p.id) AS reviewed,
			COALESCE(SUM(CASE WHEN p.id IS NULL OR p.next_review_date <= ? THEN 1 ELSE 0 END), 0) AS due_now
		FROM questions q
		LEFT JOIN question_progress p ON p.question_id = q.id AND p.user_id = q.user_id
		WHERE q.user_id = ? AND q.deleted_at IS NULL`)
	if err := r.db.GetContext(ctx, &s, query, now.UTC(), userID); err != nil {
		return s, fmt.Errorf("failed to get question statistics: %w", err)
	}

	var attempts struct {
		Attempts int `db:"attempts"`
		Correct  int `db:"correct"`
	}
	query = r.db.Rebind(`
		SELECT
			COUNT(*) AS attempts,
			COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct
		FROM interactions
		WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, &attempts, query, userID); err != nil {
		return s, fmt.Errorf("failed to get attempt statistics: %w", err)
	}
	s.Attempts = attempts.Attempts
	s.Correct = attempts.Correct
	return s, nil
}
