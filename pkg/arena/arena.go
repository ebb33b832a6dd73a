// Package arena is an in-process store of entities keyed by id, guarded by
// per-entity locks with a bounded wait.
package arena

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
)

// DefaultLockTimeout bounds how long a mutation waits for an entity lock
const DefaultLockTimeout = 2 * time.Second

// entityLock is a mutex that can be acquired with a deadline
type entityLock chan struct{}

func newEntityLock() entityLock {
	return make(entityLock, 1)
}

func (l entityLock) acquire(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (l entityLock) release() {
	<-l
}

type entry[T any] struct {
	lock entityLock
	cur  atomic.Pointer[T]
}

// Hooks customize how a table stamps and quarantines its entities
type Hooks[T any] struct {
	// Touch runs on every published write
	Touch func(*T, time.Time)
	// Quarantine marks an entity found in an impossible state
	Quarantine func(*T)
}

// Table holds entities keyed by id. Reads load an immutable pointer
// without locking; writers serialize per entity and publish a fresh copy.
type Table[T any] struct {
	kind        string
	mu          sync.RWMutex
	entries     map[string]*entry[T]
	lockTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
	hooks       Hooks[T]
}

// New creates an empty table. kind names the entity in errors and logs.
func New[T any](kind string, opts Options, hooks Hooks[T]) *Table[T] {
	return &Table[T]{
		kind:        kind,
		entries:     make(map[string]*entry[T]),
		lockTimeout: opts.lockTimeout(),
		now:         opts.clock(),
		logger:      opts.logger(),
		hooks:       hooks,
	}
}

// Now returns the table clock's current time
func (t *Table[T]) Now() time.Time {
	return t.now()
}

func (t *Table[T]) touch(v *T) {
	if t.hooks.Touch != nil {
		t.hooks.Touch(v, t.now())
	}
}

// Insert adds a new entity; an existing id is a ConflictError
func (t *Table[T]) Insert(id string, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return apperr.Conflict(id, t.kind+" already registered")
	}
	t.touch(&v)
	e := &entry[T]{lock: newEntityLock()}
	e.cur.Store(&v)
	t.entries[id] = e
	return nil
}

func (t *Table[T]) lookup(id string) (*entry[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	return e, ok
}

// Get returns a copy of the entity
func (t *Table[T]) Get(id string) (T, error) {
	e, ok := t.lookup(id)
	if !ok {
		var zero T
		return zero, apperr.NotFound(t.kind, id)
	}
	return *e.cur.Load(), nil
}

// Snapshot copies every entity, ordered by id
func (t *Table[T]) Snapshot() []T {
	t.mu.RLock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	entries := make([]*entry[T], 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		entries = append(entries, t.entries[id])
	}
	t.mu.RUnlock()

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e.cur.Load())
	}
	return out
}

// Mutate applies fn to a private copy of the entity while holding its lock.
// The copy is published only when fn returns nil. An InvariantViolation
// from fn publishes the quarantined original instead.
func (t *Table[T]) Mutate(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var zero T
	e, ok := t.lookup(id)
	if !ok {
		return zero, apperr.NotFound(t.kind, id)
	}
	if !e.lock.acquire(ctx, t.lockTimeout) {
		return zero, apperr.Conflict(id, "timed out waiting for "+t.kind+" lock")
	}
	defer e.lock.release()

	next := *e.cur.Load()
	if err := fn(&next); err != nil {
		// only the entity named by the violation is quarantined; outer
		// tables in a nested mutation just propagate the error
		var iv *apperr.InvariantViolation
		if errors.As(err, &iv) && iv.ID == id && t.hooks.Quarantine != nil {
			q := *e.cur.Load()
			t.hooks.Quarantine(&q)
			t.touch(&q)
			e.cur.Store(&q)
			t.logger.Error("invariant violated, entity quarantined",
				"kind", t.kind, "id", id, "detail", iv.Detail)
		}
		return zero, err
	}
	t.touch(&next)
	e.cur.Store(&next)
	return next, nil
}

// Options configures a table
type Options struct {
	LockTimeout time.Duration
	Clock       func() time.Time
	Logger      *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) lockTimeout() time.Duration {
	if o.LockTimeout <= 0 {
		return DefaultLockTimeout
	}
	return o.LockTimeout
}

func (o Options) clock() func() time.Time {
	if o.Clock == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return o.Clock
}
