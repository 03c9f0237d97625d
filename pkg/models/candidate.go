package models

import "time"

// ReviewCandidate is the next unit of review work returned by the scheduler backend
type ReviewCandidate struct {
	Key          CandidateKey   `json:"key"`
	Question     Question       `json:"question"`
	Interactions []Interaction  `json:"interactions"`
	State        SchedulerState `json:"state"`
}

// SessionLock is the single-slot token that keeps the feed from displacing an active review
type SessionLock struct {
	ID         string       `json:"id"`
	Key        CandidateKey `json:"key"`
	AcquiredAt time.Time    `json:"acquired_at"`
}
