// Package feed delivers "next due candidate" snapshots to the review controller
// and detects when a snapshot carries nothing new.
package feed

import (
	"context"

	"github.com/example/scry/pkg/models"
)

// Status says what a snapshot carries.
type Status string

const (
	// StatusPending means the first response has not arrived yet.
	StatusPending Status = "pending"
	// StatusEmpty means nothing is due right now.
	StatusEmpty Status = "empty"
	// StatusReady means Candidate holds the next due item.
	StatusReady Status = "ready"
)

// Snapshot is one value emitted by a feed.
type Snapshot struct {
	Status    Status                  `json:"status"`
	Candidate *models.ReviewCandidate `json:"candidate,omitempty"`
}

func Pending() Snapshot { return Snapshot{Status: StatusPending} }

func Empty() Snapshot { return Snapshot{Status: StatusEmpty} }

func Ready(c *models.ReviewCandidate) Snapshot {
	if c == nil {
		return Empty()
	}
	return Snapshot{Status: StatusReady, Candidate: c}
}

// Payload is the value fed to the change detector: nil while pending or empty.
func (s Snapshot) Payload() any {
	if s.Status != StatusReady || s.Candidate == nil {
		return nil
	}
	return s.Candidate
}

// Source is anything that pushes snapshots to a callback until unsubscribed.
// Polling and push transports both implement it.
type Source interface {
	Subscribe(ctx context.Context, fn func(Snapshot)) (unsubscribe func(), err error)
}

// Refresher is implemented by sources that can fetch out of band.
type Refresher interface {
	Refresh()
}

// FetchFunc returns the next due candidate, or nil when nothing is due.
type FetchFunc func(ctx context.Context) (*models.ReviewCandidate, error)
