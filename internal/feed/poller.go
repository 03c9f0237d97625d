package feed

import (
	"context"
	"sync"
	"time"

	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/scheduler"
)

const pollerModule = "Poller"

// Poller turns a pollable query into a Source by running it on a scheduler job.
type Poller struct {
	name     string
	fetch    FetchFunc
	interval time.Duration
	sched    *scheduler.Scheduler
	log      logger.ILogger

	// tickMu keeps fetch+emit pairs in order between the job and Refresh
	tickMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	fn      func(Snapshot)
	active  bool
	refresh sync.WaitGroup
}

func NewPoller(name string, fetch FetchFunc, interval time.Duration, sched *scheduler.Scheduler, log logger.ILogger) *Poller {
	return &Poller{
		name:     name,
		fetch:    fetch,
		interval: interval,
		sched:    sched,
		log:      log,
	}
}

// Subscribe emits a pending snapshot right away, then one snapshot per
// successful fetch. Failed fetches are logged and skipped.
func (p *Poller) Subscribe(ctx context.Context, fn func(Snapshot)) (func(), error) {
	p.mu.Lock()
	p.ctx, p.fn, p.active = ctx, fn, true
	p.mu.Unlock()

	fn(Pending())

	cancel, err := p.sched.Every(p.interval, "poll:"+p.name, p.tick)
	if err != nil {
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
		return nil, err
	}

	return func() {
		cancel()
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
		p.refresh.Wait()
		// wait out a tick that is already emitting
		p.tickMu.Lock()
		p.tickMu.Unlock()
	}, nil
}

// Refresh fetches once outside the regular schedule.
func (p *Poller) Refresh() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.refresh.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.refresh.Done()
		p.tick()
	}()
}

func (p *Poller) tick() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	p.mu.Lock()
	ctx, fn, active := p.ctx, p.fn, p.active
	p.mu.Unlock()
	if !active || ctx.Err() != nil {
		return
	}

	candidate, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn(pollerModule, "Fetch failed, skipping tick", map[string]interface{}{
			"feed":  p.name,
			"error": err.Error(),
		})
		return
	}

	// Отписка могла произойти во время запроса
	p.mu.Lock()
	active = p.active
	p.mu.Unlock()
	if !active {
		return
	}

	fn(Ready(candidate))
}
