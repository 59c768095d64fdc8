package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/associates-api/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory fixed-window implementation of ratelimit.Store.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*counterWindow
	now     func() time.Time
}

type counterWindow struct {
	start time.Time
	end   time.Time
	count int64
}

// RateLimitMemoryOption configures a RateLimitMemoryStore.
type RateLimitMemoryOption func(*RateLimitMemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RateLimitMemoryOption {
	return func(s *RateLimitMemoryStore) { s.now = now }
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore(opts ...RateLimitMemoryOption) *RateLimitMemoryStore {
	s := &RateLimitMemoryStore{
		windows: make(map[string]*counterWindow),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (ratelimit.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.end) {
		w = &counterWindow{start: now, end: now.Add(window)}
		s.windows[key] = w
	}

	w.count++

	return ratelimit.Usage{Count: w.count, ResetAt: w.end}, nil
}

// Sweep drops windows that have ended and returns how many were dropped.
func (s *RateLimitMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0

	for key, w := range s.windows {
		if !now.Before(w.end) {
			delete(s.windows, key)
			dropped++
		}
	}

	return dropped
}

// Len returns the number of tracked windows.
func (s *RateLimitMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows)
}

// StartJanitor sweeps expired windows every interval until ctx is done.
func (s *RateLimitMemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
