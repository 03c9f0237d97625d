package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/scry/pkg/models"
)

const questionColumns = `id, user_id, concept_id, phrasing_id, topic, prompt, options,
	correct_answer, explanation, deleted_at, created_at, updated_at`

// questionRow maps the options column, stored as a JSON array
type questionRow struct {
	models.Question
	OptionsJSON string `db:"options"`
}

func (r questionRow) toModel() (models.Question, error) {
	q := r.Question
	if r.OptionsJSON != "" {
		if err := json.Unmarshal([]byte(r.OptionsJSON), &q.Options); err != nil {
			return q, fmt.Errorf("failed to decode options of question %d: %w", q.ID, err)
		}
	}
	return q, nil
}

func encodeOptions(options []string) (string, error) {
	if options == nil {
		options = []string{}
	}
	b, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to encode options: %w", err)
	}
	return string(b), nil
}

// TopicCount is the number of active questions under one topic
type TopicCount struct {
	Topic string `db:"topic"`
	Count int    `db:"count"`
}

// QuestionRepository handles database operations for questions
type QuestionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewQuestionRepository creates a new repository instance
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a question and fills its id and timestamps
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return err
	}
	now := r.now()
	query := r.db.Rebind(`
		INSERT INTO questions (
			user_id, concept_id, phrasing_id, topic, prompt, options,
			correct_answer, explanation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err = r.db.QueryRowxContext(ctx, query,
		q.UserID, q.ConceptID, q.PhrasingID, q.Topic, q.Prompt, options,
		q.CorrectAnswer, q.Explanation, now, now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	q.ID = id
	q.CreatedAt = now
	q.UpdatedAt = now
	return nil
}

// GetByID returns a question, soft-deleted ones included
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	var row questionRow
	query := r.db.Rebind(`SELECT ` + questionColumns + ` FROM questions WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	q, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListByUser returns the user's questions that are not deleted, oldest first
func (r *QuestionRepository) ListByUser(ctx context.Context, userID int64) ([]models.Question, error) {
	var rows []questionRow
	query := r.db.Rebind(`
		SELECT ` + questionColumns + ` FROM questions
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY id`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	questions := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.toModel()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// ListTopics groups the user's active questions by topic
func (r *QuestionRepository) ListTopics(ctx context.Context, userID int64) ([]TopicCount, error) {
	var topics []TopicCount
	query := r.db.Rebind(`
		SELECT topic, COUNT(*) AS count FROM questions
		WHERE user_id = ? AND deleted_at IS NULL
		GROUP BY topic
		ORDER BY topic`)
	if err := r.db.SelectContext(ctx, &topics, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// owned loads a question and checks it can still be changed by userID
func (r *QuestionRepository) owned(ctx context.Context, userID, id int64) (*models.Question, error) {
	q, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != userID {
		return nil, models.ErrNotAuthorized
	}
	if q.DeletedAt != nil {
		return nil, models.ErrAlreadyDeleted
	}
	return q, nil
}

// Update applies patch to the user's question. Returns false when the row
// vanished between the read and the write.
func (r *QuestionRepository) Update(ctx context.Context, userID, id int64, patch models.QuestionPatch) (bool, error) {
	q, err := r.owned(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if patch.IsEmpty() {
		return true, nil
	}

	updated := patch.ApplyTo(*q)
	options, err := encodeOptions(updated.Options)
	if err != nil {
		return false, err
	}

	query := r.db.Rebind(`
		UPDATE questions SET
			prompt = ?, options = ?, correct_answer = ?, explanation = ?, topic = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`)
	result, err := r.db.ExecContext(ctx, query,
		updated.Prompt, options, updated.CorrectAnswer, updated.Explanation, updated.Topic,
		r.now(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update question: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// SoftDelete marks the user's question deleted
func (r *QuestionRepository) SoftDelete(ctx context.Context, userID, id int64) (bool, error) {
	if _, err := r.owned(ctx, userID, id); err != nil {
		return false, err
	}

	now := r.now()
	query := r.db.Rebind(`
		UPDATE questions SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`)
	result, err := r.db.ExecContext(ctx, query, now, now, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete question: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListUserIDs returns every user that owns at least one active question
func (r *QuestionRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT user_id FROM questions WHERE deleted_at IS NULL ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
