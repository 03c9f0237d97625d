package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/scry/internal/feed"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/session"
)

const module = "Review"

// ErrAlreadyStarted is returned by a second Start
var ErrAlreadyStarted = errors.New("review controller already started")

// Config holds the controller timings
type Config struct {
	// LoadingTimeout bounds how long loading or transitioning may last
	LoadingTimeout time.Duration
}

// Stats counts what the controller did with its inputs
type Stats struct {
	Ticks       int
	Ignored     int
	LocksMinted int
	Timeouts    int
}

// Controller reconciles a feed of due candidates with the review the user is
// doing right now. All inputs are applied one at a time under one mutex.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	src      feed.Source
	log      logger.ILogger
	detector *feed.ChangeDetector
	lock     *session.Lock
	now      func() time.Time

	state    State
	observed bool
	stats    Stats

	watchdog *time.Timer
	watchGen uint64

	listeners    map[int]func(State)
	nextListener int

	started     bool
	closed      bool
	unsubscribe func()
}

func NewController(cfg Config, src feed.Source, log logger.ILogger) *Controller {
	if cfg.LoadingTimeout <= 0 {
		cfg.LoadingTimeout = 5 * time.Second
	}
	return &Controller{
		cfg:       cfg,
		src:       src,
		log:       log,
		detector:  feed.NewChangeDetector(log),
		lock:      session.NewLock(),
		now:       time.Now,
		state:     InitialState(),
		listeners: make(map[int]func(State)),
	}
}

// Start arms the loading watchdog and subscribes to the feed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.armWatchdogLocked()
	c.mu.Unlock()

	// the source may call HandleSnapshot synchronously, so no lock here
	unsubscribe, err := c.src.Subscribe(ctx, c.HandleSnapshot)
	if err != nil {
		c.log.Error(module, "Feed subscription failed", map[string]interface{}{"error": err})
		c.mu.Lock()
		c.started = false
		c.stopWatchdogLocked()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Close stops the watchdog, drops listeners and unsubscribes from the feed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopWatchdogLocked()
	c.listeners = make(map[int]func(State))
	c.lock.Release()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the input counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// IsLocked reports whether a review is in progress.
func (c *Controller) IsLocked() bool {
	return c.lock.IsHeld()
}

// OnChange registers fn to receive every new state. fn runs with the
// controller locked: it must not block and must not call back into c.
func (c *Controller) OnChange(fn func(State)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// HandleSnapshot applies one feed value.
func (c *Controller) HandleSnapshot(snap feed.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.stats.Ticks++
	e := c.decideLocked(snap)
	c.detector.Commit()
	c.dispatchLocked(e)
}

// CompleteReview finishes the review of the displayed candidate. The
// candidate stays displayed while the next one is fetched. It returns false
// when no review was in progress.
func (c *Controller) CompleteReview() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	prev := c.state
	c.dispatchLocked(ReviewComplete())
	completed := !prev.Equal(c.state)
	c.mu.Unlock()

	if completed {
		if r, ok := c.src.(feed.Refresher); ok {
			r.Refresh()
		}
	}
	return completed
}

// Retry leaves the error phase: the next feed value is treated as new.
func (c *Controller) Retry() {
	c.mu.Lock()
	if c.closed || c.state.Phase != PhaseError {
		c.mu.Unlock()
		return
	}
	c.detector.Reset()
	c.dispatchLocked(LoadStart())
	c.mu.Unlock()

	if r, ok := c.src.(feed.Refresher); ok {
		r.Refresh()
	}
}

func (c *Controller) decideLocked(snap feed.Snapshot) Event {
	changed := c.detector.Observe(snap.Payload())
	first := !c.observed
	c.observed = true
	s := c.state

	if !changed && s.Phase != PhaseLoading && !s.IsTransitioning {
		return Ignore("unchanged payload")
	}
	if c.lock.IsHeld() {
		return Ignore("actively reviewing")
	}

	switch snap.Status {
	case feed.StatusPending:
		if first {
			return LoadStart()
		}
		return Ignore("still loading")

	case feed.StatusEmpty:
		return LoadEmpty()
	}

	if snap.Candidate == nil {
		return LoadEmpty()
	}

	key := snap.Candidate.Key
	// a candidate kept around after a timeout is not on screen
	shown, hasShown := s.CandidateKey()
	hasShown = hasShown && s.Phase == PhaseReviewing
	switch {
	case !hasShown || shown != key:
		id, err := c.lock.Acquire(key)
		if err != nil {
			return Ignore("actively reviewing")
		}
		return CandidateReceived(snap.Candidate, id, c.now())
	case s.IsTransitioning:
		// same candidate queued again right after an answer
		return CandidateReceived(snap.Candidate, session.NewLockID(), c.now())
	default:
		return Ignore("same candidate already displayed")
	}
}

func (c *Controller) dispatchLocked(e Event) {
	prev := c.state
	next := Reduce(prev, e)

	if e.Type == EventIgnore {
		c.stats.Ignored++
		c.log.Debug(module, "Feed update ignored", map[string]interface{}{"reason": e.Reason})
	}

	// runs for no-op transitions too: a lock acquired for a rejected
	// candidate must not outlive the decision
	c.syncLockLocked(prev, next)
	if prev.Equal(next) {
		return
	}
	c.state = next

	c.log.Info(module, "Phase transition", map[string]interface{}{
		"event":         string(e.Type),
		"from":          string(prev.Phase),
		"to":            string(next.Phase),
		"transitioning": next.IsTransitioning,
		"candidate":     keyString(next),
	})

	if prev.Phase != next.Phase || prev.IsTransitioning != next.IsTransitioning {
		c.armWatchdogLocked()
	}

	for _, fn := range c.listeners {
		fn(next)
	}
}

func (c *Controller) syncLockLocked(prev, next State) {
	if next.Lock == nil {
		c.lock.Release()
		return
	}
	if prev.Lock != nil && prev.Lock.ID == next.Lock.ID {
		return
	}
	// new candidates arrive with the lock already acquired; the re-review
	// of the displayed candidate installs a freshly minted id
	if cur := c.lock.Current(); cur == nil || cur.ID != next.Lock.ID {
		c.lock.Rearm(next.Lock.Key, next.Lock.ID)
	}
	c.stats.LocksMinted++
}

// armWatchdogLocked replaces any running watchdog; it only runs while loading
// or transitioning.
func (c *Controller) armWatchdogLocked() {
	c.stopWatchdogLocked()
	if c.closed || (c.state.Phase != PhaseLoading && !c.state.IsTransitioning) {
		return
	}
	gen := c.watchGen
	c.watchdog = time.AfterFunc(c.cfg.LoadingTimeout, func() { c.onWatchdog(gen) })
}

func (c *Controller) stopWatchdogLocked() {
	c.watchGen++
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *Controller) onWatchdog(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.watchGen {
		return
	}
	c.watchdog = nil
	c.stats.Timeouts++
	c.log.Warn(module, "Loading watchdog fired", map[string]interface{}{
		"phase":         string(c.state.Phase),
		"transitioning": c.state.IsTransitioning,
		"timeout":       c.cfg.LoadingTimeout.String(),
	})
	c.dispatchLocked(LoadTimeout())
}

func keyString(s State) string {
	if k, ok := s.CandidateKey(); ok {
		return k.String()
	}
	return ""
}
