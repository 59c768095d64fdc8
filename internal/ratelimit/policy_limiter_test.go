package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/associates-api/internal/ratelimit"
	"github.com/serroba/associates-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Record(_ context.Context, _ string, _ time.Duration) (ratelimit.Usage, error) {
	return ratelimit.Usage{}, errors.New("store unavailable")
}

func newLimiter(clock *fakeClock) *ratelimit.PolicyLimiter {
	memStore := store.NewRateLimitMemoryStore(store.WithClock(clock.Now))

	return ratelimit.NewPolicyLimiter(memStore, ratelimit.NewPolicy(ratelimit.DefaultPolicyConfig()))
}

func TestPolicyLimiter_StrictScope(t *testing.T) {
	strict := []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeStrict}

	t.Run("rejects the 11th write within the window", func(t *testing.T) {
		clock := newFakeClock()
		limiter := newLimiter(clock)

		for i := range 10 {
			decision, err := limiter.Allow(context.Background(), "10.0.0.1", strict)
			require.NoError(t, err)
			assert.True(t, decision.Allowed, "request %d should be allowed", i+1)
		}

		decision, err := limiter.Allow(context.Background(), "10.0.0.1", strict)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		require.NotNil(t, decision.Exceeded)
		assert.Equal(t, ratelimit.ScopeStrict, decision.Exceeded.Scope)
		assert.Equal(t, int64(11), decision.Exceeded.Count)
		assert.Equal(t, "Too many attempts, slow down!", decision.Exceeded.Message)
	})

	t.Run("allows the first request of a new window", func(t *testing.T) {
		clock := newFakeClock()
		limiter := newLimiter(clock)

		for range 11 {
			_, _ = limiter.Allow(context.Background(), "10.0.0.1", strict)
		}

		clock.Advance(5 * time.Minute)

		decision, err := limiter.Allow(context.Background(), "10.0.0.1", strict)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		clock := newFakeClock()
		limiter := newLimiter(clock)

		for range 11 {
			_, _ = limiter.Allow(context.Background(), "10.0.0.1", strict)
		}

		decision, err := limiter.Allow(context.Background(), "10.0.0.2", strict)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}

func TestPolicyLimiter_ScopesAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock)

	for range 10 {
		_, _ = limiter.Allow(context.Background(), "10.0.0.1", []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeStrict})
	}

	decision, err := limiter.Allow(context.Background(), "10.0.0.1", []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeLike})
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "like scope should not be affected by strict usage")

	decision, err = limiter.Allow(context.Background(), "10.0.0.1", []ratelimit.Scope{ratelimit.ScopeGlobal})
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "reads should not be affected by strict usage")
}

func TestPolicyLimiter_GlobalCeiling(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock)
	reads := []ratelimit.Scope{ratelimit.ScopeGlobal}

	for range 100 {
		decision, err := limiter.Allow(context.Background(), "10.0.0.1", reads)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := limiter.Allow(context.Background(), "10.0.0.1", reads)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ratelimit.ScopeGlobal, decision.Exceeded.Scope)
	assert.Equal(t, ratelimit.DefaultMessage, decision.Exceeded.Message)

	clock.Advance(15 * time.Minute)

	decision, err = limiter.Allow(context.Background(), "10.0.0.1", reads)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestPolicyLimiter_Quota(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock)

	decision, err := limiter.Allow(context.Background(), "10.0.0.1",
		[]ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeStrict})
	require.NoError(t, err)
	require.NotNil(t, decision.Quota)

	// The strict limit is the tightest one.
	assert.Equal(t, int64(10), decision.Quota.Limit)
	assert.Equal(t, int64(9), decision.Quota.Remaining)
	assert.Equal(t, clock.Now().Add(5*time.Minute), decision.Quota.ResetAt)
}

func TestPolicyLimiter_UnknownScopeIsIgnored(t *testing.T) {
	limiter := newLimiter(newFakeClock())

	decision, err := limiter.Allow(context.Background(), "10.0.0.1", []ratelimit.Scope{"unknown"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Quota)
}

func TestPolicyLimiter_StoreError(t *testing.T) {
	limiter := ratelimit.NewPolicyLimiter(failingStore{}, ratelimit.NewPolicy(ratelimit.DefaultPolicyConfig()))

	decision, err := limiter.Allow(context.Background(), "10.0.0.1", []ratelimit.Scope{ratelimit.ScopeGlobal})

	require.Error(t, err)
	assert.Nil(t, decision)
}

func TestPolicyLimiter_ConcurrentRequestsAreCountedOnce(t *testing.T) {
	limiter := newLimiter(newFakeClock())
	strict := []ratelimit.Scope{ratelimit.ScopeStrict}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			decision, err := limiter.Allow(context.Background(), "10.0.0.1", strict)
			if err == nil && decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestNewPolicy(t *testing.T) {
	policy := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		GlobalMax: 1, GlobalWindow: time.Second,
		StrictMax: 2, StrictWindow: time.Minute,
		LikeMax: 3, LikeWindow: time.Hour,
	})

	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Second, Max: 1}}, policy.Limits[ratelimit.ScopeGlobal])
	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 2}}, policy.Limits[ratelimit.ScopeStrict])
	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Hour, Max: 3}}, policy.Limits[ratelimit.ScopeLike])
	assert.Equal(t, ratelimit.DefaultMessage, policy.Message("missing"))
}
