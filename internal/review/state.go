// Package review owns the review phase state machine and the controller that
// drives it from a feed of due candidates.
package review

import (
	"reflect"

	"github.com/example/scry/pkg/models"
)

// Phase is what the presenter should show.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseEmpty     Phase = "empty"
	PhaseReviewing Phase = "reviewing"
	PhaseError     Phase = "error"
)

// TimeoutMessage is shown when loading or transitioning stalls.
const TimeoutMessage = "Loading is taking longer than expected. Refresh to retry."

// State is the controller's view of the session. Candidate and Lock are
// shared, never mutated in place.
type State struct {
	Phase           Phase
	Candidate       *models.ReviewCandidate
	Lock            *models.SessionLock
	IsTransitioning bool
	ErrorMessage    string
}

// InitialState is where every controller starts.
func InitialState() State {
	return State{Phase: PhaseLoading}
}

// Equal compares states field by field.
func (s State) Equal(o State) bool {
	if s.Phase != o.Phase || s.IsTransitioning != o.IsTransitioning || s.ErrorMessage != o.ErrorMessage {
		return false
	}
	if !lockEqual(s.Lock, o.Lock) {
		return false
	}
	return candidateEqual(s.Candidate, o.Candidate)
}

// CandidateKey returns the key of the displayed candidate.
func (s State) CandidateKey() (models.CandidateKey, bool) {
	if s.Candidate == nil {
		return models.CandidateKey{}, false
	}
	return s.Candidate.Key, true
}

func lockEqual(a, b *models.SessionLock) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Key == b.Key
}

func candidateEqual(a, b *models.ReviewCandidate) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Key == b.Key && reflect.DeepEqual(*a, *b)
}
