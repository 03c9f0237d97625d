package models

import (
	"fmt"
	"strings"
)

// CandidateKey is the stable identity of a review candidate across presentational variants
type CandidateKey struct {
	ConceptID  string `json:"concept_id"`
	PhrasingID string `json:"phrasing_id"`
}

// NewCandidateKey builds the key for a question. Questions without a concept
// fall back to a key derived from the question id.
func NewCandidateKey(questionID int64, conceptID, phrasingID string) CandidateKey {
	if conceptID == "" {
		return CandidateKey{ConceptID: fmt.Sprintf("q:%d", questionID)}
	}
	return CandidateKey{ConceptID: conceptID, PhrasingID: phrasingID}
}

// IsZero reports whether the key is unset
func (k CandidateKey) IsZero() bool {
	return k.ConceptID == "" && k.PhrasingID == ""
}

func (k CandidateKey) String() string {
	if k.PhrasingID == "" {
		return k.ConceptID
	}
	return k.ConceptID + "/" + k.PhrasingID
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
