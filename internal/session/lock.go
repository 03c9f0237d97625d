package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/scry/pkg/models"
)

// ErrLockHeld is returned by Acquire while another session owns the lock
var ErrLockHeld = errors.New("session lock already held")

// Lock is a single-slot ownership token. While held, feed updates must not
// replace the displayed candidate. Only the review controller acquires and
// releases it; everything else only reads.
type Lock struct {
	mu   sync.RWMutex
	held *models.SessionLock
	now  func() time.Time
}

func NewLock() *Lock {
	return &Lock{now: time.Now}
}

// NewLockID mints an identifier that is never reused across acquisitions
func NewLockID() string {
	return uuid.NewString()
}

// Acquire takes the lock for key and returns a fresh lock id
func (l *Lock) Acquire(key models.CandidateKey) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held != nil {
		return "", ErrLockHeld
	}
	id := NewLockID()
	l.held = &models.SessionLock{ID: id, Key: key, AcquiredAt: l.now()}
	return id, nil
}

// Rearm installs a lock with the given id whether or not one is held.
// Reserved for the review controller's re-review path.
func (l *Lock) Rearm(key models.CandidateKey, id string) models.SessionLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = &models.SessionLock{ID: id, Key: key, AcquiredAt: l.now()}
	return *l.held
}

func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = nil
}

func (l *Lock) IsHeld() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.held != nil
}

// HeldKey returns the key of the held lock, false when free
func (l *Lock) HeldKey() (models.CandidateKey, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.held == nil {
		return models.CandidateKey{}, false
	}
	return l.held.Key, true
}

// Current returns a copy of the held lock, or nil
func (l *Lock) Current() *models.SessionLock {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.held == nil {
		return nil
	}
	cp := *l.held
	return &cp
}
