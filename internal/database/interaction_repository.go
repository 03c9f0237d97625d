package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/scry/pkg/models"
)

// InteractionRepository stores answer attempts
type InteractionRepository struct {
	db *sqlx.DB
}

func NewInteractionRepository(db *sqlx.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Create inserts an interaction and fills its id
func (r *InteractionRepository) Create(ctx context.Context, in *models.Interaction) error {
	query := r.db.Rebind(`
		INSERT INTO interactions (
			user_id, question_id, answer, is_correct, time_spent_ms, session_id, attempted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query,
		in.UserID, in.QuestionID, in.Answer, in.IsCorrect, in.TimeSpentMs, in.SessionID, in.AttemptedAt.UTC(),
	).Scan(&in.ID)
	if err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}
	return nil
}

// ListByQuestion returns the latest attempts, newest first
func (r *InteractionRepository) ListByQuestion(ctx context.Context, userID, questionID int64, limit int) ([]models.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.Interaction
	query := r.db.Rebind(`
		SELECT id, user_id, question_id, answer, is_correct, time_spent_ms, session_id, attempted_at
		FROM interactions
		WHERE user_id = ? AND question_id = ?
		ORDER BY attempted_at DESC, id DESC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, query, userID, questionID, limit); err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return out, nil
}
