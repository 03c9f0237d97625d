package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/scry/internal/logger"
	"github.com/go-co-op/gocron"
)

const module = "Scheduler"

// Scheduler hosts the recurring jobs of the application (feed polls, relays)
type Scheduler struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
	log       logger.ILogger
	started   bool
}

// CancelFunc removes a job from the scheduler. Safe to call more than once.
type CancelFunc func()

// New creates a new scheduler instance
func New(log logger.ILogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log,
	}
}

// Start begins running all scheduled jobs in a non-blocking manner
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.scheduler.StartAsync()
	s.started = true
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.scheduler.Stop()
	s.started = false
}

// Every runs fn immediately and then every interval. A run that is still in
// progress when the next one is due makes the next one wait (singleton mode).
func (s *Scheduler) Every(interval time.Duration, name string, fn func()) (CancelFunc, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval %v for job %s", interval, name)
	}

	// Построение цепочки gocron не потокобезопасно
	s.mu.Lock()
	job, err := s.scheduler.Every(interval).SingletonMode().Tag(name).Do(fn)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.log.Debug(module, "Job scheduled", map[string]interface{}{"job": name, "interval": interval.String()})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.scheduler.RemoveByReference(job)
			s.mu.Unlock()
			s.log.Debug(module, "Job removed", map[string]interface{}{"job": name})
		})
	}, nil
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scheduler.Jobs())
}
