package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/tariffscope/admission/internal/core/domain/limit"
)

// WindowMemoryStore is the in-process window counter store for
// single-instance deployments and tests. It implements the same fixed-window
// check-and-increment contract as the Redis store, so the two substitute for
// each other without touching callers. The mutex makes the
// whole check-and-increment one critical section; the fixed-window boundary
// burst trade-off applies here exactly as in the Redis store.
type WindowMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	start  time.Time
	window time.Duration
	count  int
}

type MemoryStoreOption func(*WindowMemoryStore)

// WithClock substitutes the time source, used by tests to cross window
// boundaries deterministically.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *WindowMemoryStore) { s.now = now }
}

func NewWindowMemoryStore(opts ...MemoryStoreOption) *WindowMemoryStore {
	s := &WindowMemoryStore{
		entries: make(map[string]*memoryWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAndIncrement counts one attempt for (scope, subject) in the current
// fixed window. A counter from a previous window is superseded in place, so
// there is exactly one live entry per (scope, subject) at any instant.
func (s *WindowMemoryStore) CheckAndIncrement(ctx context.Context, scope limit.Scope, subject string, max int, window time.Duration) (*limit.WindowDecision, error) {
	now := s.now()
	windowStart := now.Truncate(window)
	key := string(scope) + ":" + subject

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.start.Equal(windowStart) {
		e = &memoryWindow{start: windowStart, window: window}
		s.entries[key] = e
	}

	allowed := e.count < max
	if allowed {
		e.count++
	}

	return &limit.WindowDecision{
		Allowed:     allowed,
		Count:       e.count,
		Limit:       max,
		WindowStart: windowStart,
		ResetAfter:  windowStart.Add(window).Sub(now),
	}, nil
}

// Sweep drops entries whose window ended more than one full window ago. The
// extra window is the grace period: a request carrying a skewed clock can
// still legitimately land in the previous window, so it is never purged
// while that is possible.
func (s *WindowMemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		expiry := e.start.Add(2 * e.window)
		if now.After(expiry) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live window entries, for metrics and tests.
func (s *WindowMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
