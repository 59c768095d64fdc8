package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/serroba/associates-api/internal/ratelimit"
	"github.com/serroba/associates-api/internal/store"
)

const (
	rateLimitStoreMemory = "memory"
	rateLimitStoreRedis  = "redis"

	janitorInterval = time.Minute
)

var errUnknownRateLimitStore = errors.New("unknown rate limit store")

// sweptRateLimitStore is the in-memory counter store with its janitor.
type sweptRateLimitStore struct {
	*store.RateLimitMemoryStore

	cancel context.CancelFunc
}

// Shutdown stops the janitor.
func (s *sweptRateLimitStore) Shutdown() error {
	s.cancel()

	return nil
}

// RateLimitPackage provides the rate limit counter store and the policy limiter.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.RateLimitStore {
		case rateLimitStoreMemory:
			ctx, cancel := context.WithCancel(context.Background())
			s := store.NewRateLimitMemoryStore()
			s.StartJanitor(ctx, janitorInterval)

			return &sweptRateLimitStore{RateLimitMemoryStore: s, cancel: cancel}, nil
		case rateLimitStoreRedis:
			return store.NewRateLimitRedisStore(do.MustInvoke[*Redis](i).Client), nil
		default:
			return nil, fmt.Errorf("%w: %q", errUnknownRateLimitStore, opts.RateLimitStore)
		}
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		cfg, err := opts.PolicyConfig()
		if err != nil {
			return nil, err
		}

		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), ratelimit.NewPolicy(cfg)), nil
	})
}
