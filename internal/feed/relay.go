package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/scheduler"
)

const relayModule = "Relay"

// SnapshotPublisher pushes a user's snapshots to remote consumers.
type SnapshotPublisher interface {
	Publish(userID int64, s Snapshot) error
}

// RefreshListener reports refresh requests from remote consumers.
type RefreshListener interface {
	OnRefresh(userID int64, fn func()) (func(), error)
}

// Relay polls on behalf of remote consumers and publishes what it finds, so
// that consumers get push updates instead of polling themselves.
type Relay struct {
	pub      SnapshotPublisher
	refresh  RefreshListener
	sched    *scheduler.Scheduler
	interval time.Duration
	fetchFor func(userID int64) FetchFunc
	log      logger.ILogger

	mu      sync.Mutex
	watches map[int64]func()
}

func NewRelay(pub SnapshotPublisher, refresh RefreshListener, sched *scheduler.Scheduler, interval time.Duration, fetchFor func(userID int64) FetchFunc, log logger.ILogger) *Relay {
	return &Relay{
		pub:      pub,
		refresh:  refresh,
		sched:    sched,
		interval: interval,
		fetchFor: fetchFor,
		log:      log,
		watches:  make(map[int64]func()),
	}
}

// Watch starts relaying userID's feed. Watching a user twice is a no-op.
func (r *Relay) Watch(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watches[userID]; ok {
		return nil
	}

	poller := NewPoller(fmt.Sprintf("relay:%d", userID), r.fetchFor(userID), r.interval, r.sched, r.log)
	unsubscribe, err := poller.Subscribe(ctx, func(s Snapshot) {
		// consumers produce their own pending value
		if s.Status == StatusPending {
			return
		}
		if err := r.pub.Publish(userID, s); err != nil {
			r.log.Warn(relayModule, "Publish failed", map[string]interface{}{"user_id": userID, "error": err.Error()})
		}
	})
	if err != nil {
		return err
	}

	stopRefresh, err := r.refresh.OnRefresh(userID, poller.Refresh)
	if err != nil {
		unsubscribe()
		return err
	}

	r.watches[userID] = func() {
		stopRefresh()
		unsubscribe()
	}
	r.log.Info(relayModule, "Relaying feed", map[string]interface{}{"user_id": userID, "interval": r.interval.String()})
	return nil
}

func (r *Relay) Unwatch(userID int64) {
	r.mu.Lock()
	stop, ok := r.watches[userID]
	delete(r.watches, userID)
	r.mu.Unlock()
	if ok {
		stop()
	}
}

// Watching returns the number of relayed users.
func (r *Relay) Watching() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches)
}

func (r *Relay) Close() {
	r.mu.Lock()
	watches := r.watches
	r.watches = make(map[int64]func())
	r.mu.Unlock()
	for _, stop := range watches {
		stop()
	}
}
