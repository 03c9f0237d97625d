// Package optimistic overlays pending local edits and deletes on top of
// authoritative query results until the backend confirms or rejects them.
package optimistic

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/example/scry/internal/auth"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/notify"
	"github.com/example/scry/pkg/models"
)

const module = "Optimistic"

// Entity is anything with a stable numeric id.
type Entity interface {
	EntityID() int64
}

// Remote performs the authoritative mutations. A false result without an
// error means the entity was not there to change.
type Remote[P any] interface {
	Update(ctx context.Context, userID, id int64, patch P) (bool, error)
	SoftDelete(ctx context.Context, userID, id int64) (bool, error)
}

// Notifier receives user-facing failure notices.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notice) error
}

type Config struct {
	// SettleDelay keeps a confirmed overlay until the authoritative query catches up
	SettleDelay time.Duration
	// PendingTTL bounds overlays whose remote call never returns
	PendingTTL time.Duration
}

// Result is what a mutation call reports back to its caller.
type Result struct {
	OK bool
	// Duplicate marks a delete that joined an earlier call for the same id;
	// the outcome is the earlier call's
	Duplicate bool
	Category  Category
	Message   string
	Err       error
}

// deleteCall is a soft delete whose remote call has not returned yet
type deleteCall struct {
	done chan struct{}
	res  Result
}

type pendingEdit[P any] struct {
	gen   uint64
	patch P
}

// Store keeps per-id overlays. Calls for different ids never touch each
// other's entries.
type Store[T Entity, P any] struct {
	cfg    Config
	remote Remote[P]
	apply  func(T, P) T
	notice Notifier
	log    logger.ILogger

	mu      sync.Mutex
	gen     uint64
	edits    *cache.Cache
	deletes  *cache.Cache
	inflight map[string]*deleteCall
}

// New builds a store. apply merges a patch into an authoritative item and
// must not mutate its argument. notice may be nil.
func New[T Entity, P any](cfg Config, remote Remote[P], apply func(T, P) T, notice Notifier, log logger.ILogger) *Store[T, P] {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 1500 * time.Millisecond
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 2 * time.Minute
	}
	cleanup := cfg.SettleDelay
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &Store[T, P]{
		cfg:     cfg,
		remote:  remote,
		apply:   apply,
		notice:  notice,
		log:     log,
		edits:   cache.New(cfg.PendingTTL, cleanup),
		deletes:  cache.New(cfg.PendingTTL, cleanup),
		inflight: make(map[string]*deleteCall),
	}
}

// ApplyEdit shows patch immediately, then confirms it with the backend.
func (s *Store[T, P]) ApplyEdit(ctx context.Context, id int64, patch P) Result {
	userID, ok := auth.UserFromContext(ctx)
	if !ok {
		return s.reject(ctx, 0, opEdit, ErrUnauthenticated)
	}

	key := cacheKey(id)
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.edits.Set(key, pendingEdit[P]{gen: gen, patch: patch}, s.cfg.PendingTTL)
	s.mu.Unlock()

	changed, err := s.remote.Update(ctx, userID, id, patch)
	if err == nil && !changed {
		err = models.ErrNotFound
	}

	if err != nil {
		s.mu.Lock()
		if cur, found := s.edits.Get(key); found && cur.(pendingEdit[P]).gen == gen {
			s.edits.Delete(key)
		}
		s.mu.Unlock()

		s.log.Warn(module, "Edit rolled back", map[string]interface{}{
			"id":      id,
			"user_id": userID,
			"error":   err.Error(),
		})
		return s.reject(ctx, userID, opEdit, err)
	}

	s.mu.Lock()
	if cur, found := s.edits.Get(key); found && cur.(pendingEdit[P]).gen == gen {
		s.edits.Set(key, cur, s.cfg.SettleDelay)
	}
	s.mu.Unlock()

	s.log.Debug(module, "Edit confirmed", map[string]interface{}{"id": id, "user_id": userID})
	return Result{OK: true}
}

// ApplyDelete hides id immediately, then confirms the soft delete. A second
// delete for the same id makes no remote call: it waits for the first one and
// reports its outcome.
func (s *Store[T, P]) ApplyDelete(ctx context.Context, id int64) Result {
	userID, ok := auth.UserFromContext(ctx)
	if !ok {
		return s.reject(ctx, 0, opDelete, ErrUnauthenticated)
	}

	key := cacheKey(id)
	s.mu.Lock()
	if call, found := s.inflight[key]; found {
		s.mu.Unlock()
		select {
		case <-call.done:
			res := call.res
			res.Duplicate = true
			return res
		case <-ctx.Done():
			return Result{Duplicate: true, Category: CategoryGeneric, Err: ctx.Err()}
		}
	}
	if _, found := s.deletes.Get(key); found {
		// confirmed and still settling
		s.mu.Unlock()
		return Result{OK: true, Duplicate: true}
	}
	s.gen++
	gen := s.gen
	s.deletes.Set(key, gen, s.cfg.PendingTTL)
	call := &deleteCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	res := s.confirmDelete(ctx, userID, id, key, gen)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
	call.res = res
	close(call.done)
	return res
}

func (s *Store[T, P]) confirmDelete(ctx context.Context, userID, id int64, key string, gen uint64) Result {
	deleted, err := s.remote.SoftDelete(ctx, userID, id)
	if err == nil && !deleted {
		err = models.ErrAlreadyDeleted
	}

	s.mu.Lock()
	if cur, found := s.deletes.Get(key); found && cur.(uint64) == gen {
		if err != nil {
			s.deletes.Delete(key)
		} else {
			s.deletes.Set(key, gen, s.cfg.SettleDelay)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn(module, "Delete rolled back", map[string]interface{}{
			"id":      id,
			"user_id": userID,
			"error":   err.Error(),
		})
		return s.reject(ctx, userID, opDelete, err)
	}

	s.log.Debug(module, "Delete confirmed", map[string]interface{}{"id": id, "user_id": userID})
	return Result{OK: true}
}

// OverlayEdits returns items with pending patches applied.
func (s *Store[T, P]) OverlayEdits(items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		if patch, ok := s.PendingEdit(item.EntityID()); ok {
			item = s.apply(item, patch)
		}
		out[i] = item
	}
	return out
}

// WithoutDeleted drops items with a pending or settling delete.
func (s *Store[T, P]) WithoutDeleted(items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if s.IsPendingDelete(item.EntityID()) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (s *Store[T, P]) PendingEdit(id int64) (P, bool) {
	if v, found := s.edits.Get(cacheKey(id)); found {
		return v.(pendingEdit[P]).patch, true
	}
	var zero P
	return zero, false
}

func (s *Store[T, P]) IsPendingDelete(id int64) bool {
	_, found := s.deletes.Get(cacheKey(id))
	return found
}

// PendingDeletes counts live delete entries.
func (s *Store[T, P]) PendingDeletes() int {
	return len(s.deletes.Items())
}

func (s *Store[T, P]) reject(ctx context.Context, userID int64, op operation, err error) Result {
	cat := Categorize(err)
	res := Result{Category: cat, Message: userMessage(cat, op), Err: err}

	// caller went away while the backend was answering
	if ctx.Err() != nil || s.notice == nil || userID == 0 {
		return res
	}
	if nerr := s.notice.Notify(ctx, notify.Notice{
		UserID:   userID,
		Level:    notify.LevelError,
		Category: string(cat),
		Message:  res.Message,
	}); nerr != nil {
		s.log.Error(module, "Failed to deliver notice", map[string]interface{}{"error": nerr})
	}
	return res
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
