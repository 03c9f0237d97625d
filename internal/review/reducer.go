package review

import (
	"time"

	"github.com/example/scry/pkg/models"
)

// EventType enumerates the inputs of the state machine.
type EventType string

const (
	EventLoadStart         EventType = "LOAD_START"
	EventLoadEmpty         EventType = "LOAD_EMPTY"
	EventLoadTimeout       EventType = "LOAD_TIMEOUT"
	EventCandidateReceived EventType = "CANDIDATE_RECEIVED"
	EventReviewComplete    EventType = "REVIEW_COMPLETE"
	EventIgnore            EventType = "IGNORE"
)

type Event struct {
	Type      EventType
	Candidate *models.ReviewCandidate
	LockID    string
	At        time.Time
	Reason    string
}

func LoadStart() Event { return Event{Type: EventLoadStart} }

func LoadEmpty() Event { return Event{Type: EventLoadEmpty} }

func LoadTimeout() Event { return Event{Type: EventLoadTimeout} }

func ReviewComplete() Event { return Event{Type: EventReviewComplete} }

func Ignore(reason string) Event { return Event{Type: EventIgnore, Reason: reason} }

func CandidateReceived(c *models.ReviewCandidate, lockID string, at time.Time) Event {
	return Event{Type: EventCandidateReceived, Candidate: c, LockID: lockID, At: at}
}

// Reduce is the transition function. Combinations the table does not define
// return s unchanged.
func Reduce(s State, e Event) State {
	switch e.Type {
	case EventLoadStart:
		s.Phase = PhaseLoading
		s.IsTransitioning = false
		s.ErrorMessage = ""
		return s

	case EventLoadEmpty:
		return State{Phase: PhaseEmpty}

	case EventLoadTimeout:
		if s.Phase == PhaseLoading || (s.Phase == PhaseReviewing && s.IsTransitioning) {
			// candidate stays for diagnostics
			s.Phase = PhaseError
			s.ErrorMessage = TimeoutMessage
			s.IsTransitioning = false
		}
		return s

	case EventCandidateReceived:
		if s.Lock != nil || e.Candidate == nil || e.LockID == "" {
			return s
		}
		return State{
			Phase:     PhaseReviewing,
			Candidate: e.Candidate,
			Lock:      &models.SessionLock{ID: e.LockID, Key: e.Candidate.Key, AcquiredAt: e.At},
		}

	case EventReviewComplete:
		if s.Phase != PhaseReviewing || s.Lock == nil {
			return s
		}
		// keep the candidate on screen until the next one is confirmed
		s.Lock = nil
		s.IsTransitioning = true
		return s
	}

	return s
}
