package models

import "time"

// Question represents a quiz question owned by a user
type Question struct {
	ID            int64      `json:"id" db:"id"`
	UserID        int64      `json:"user_id" db:"user_id"`
	ConceptID     string     `json:"concept_id" db:"concept_id"`   // Stable concept identity shared by phrasings
	PhrasingID    string     `json:"phrasing_id" db:"phrasing_id"` // Presentation variant of the concept
	Topic         string     `json:"topic" db:"topic"`
	Prompt        string     `json:"prompt" db:"prompt"`
	Options       []string   `json:"options" db:"-"`
	CorrectAnswer string     `json:"correct_answer" db:"correct_answer"`
	Explanation   string     `json:"explanation" db:"explanation"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Key returns the composite key the question is reviewed under
func (q Question) Key() CandidateKey {
	return NewCandidateKey(q.ID, q.ConceptID, q.PhrasingID)
}

// EntityID identifies the question for optimistic overlays
func (q Question) EntityID() int64 {
	return q.ID
}

// IsCorrect reports whether answer matches the stored correct answer
func (q Question) IsCorrect(answer string) bool {
	return normalizeAnswer(answer) == normalizeAnswer(q.CorrectAnswer)
}

// QuestionPatch holds the editable fields of a question. Nil fields are left untouched.
type QuestionPatch struct {
	Prompt        *string  `json:"prompt,omitempty"`
	CorrectAnswer *string  `json:"correct_answer,omitempty"`
	Explanation   *string  `json:"explanation,omitempty"`
	Topic         *string  `json:"topic,omitempty"`
	Options       []string `json:"options,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p QuestionPatch) IsEmpty() bool {
	return p.Prompt == nil && p.CorrectAnswer == nil && p.Explanation == nil &&
		p.Topic == nil && p.Options == nil
}

// ApplyTo returns a copy of q with the patch applied
func (p QuestionPatch) ApplyTo(q Question) Question {
	if p.Prompt != nil {
		q.Prompt = *p.Prompt
	}
	if p.CorrectAnswer != nil {
		q.CorrectAnswer = *p.CorrectAnswer
	}
	if p.Explanation != nil {
		q.Explanation = *p.Explanation
	}
	if p.Topic != nil {
		q.Topic = *p.Topic
	}
	if p.Options != nil {
		q.Options = append([]string(nil), p.Options...)
	}
	return q
}
