package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// LimitExceeded contains information about which limit was exceeded.
type LimitExceeded struct {
	Scope   Scope
	Config  LimitConfig
	Count   int64
	ResetAt time.Time
	Message string
}

// Quota describes the tightest limit that applied to a request.
type Quota struct {
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed bool
	// Exceeded is set when Allowed is false.
	Exceeded *LimitExceeded
	// Quota is nil when no limit applied.
	Quota *Quota
}

// PolicyLimiter enforces rate limits based on a policy and resolved scopes.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{
		store:  store,
		policy: policy,
	}
}

// Allow counts the request against every limit of the given scopes, in order,
// and stops at the first limit that is exceeded. Each scope keeps its own
// counters per client.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (*Decision, error) {
	decision := &Decision{Allowed: true}

	for _, scope := range scopes {
		limits, ok := l.policy.Limits[scope]
		if !ok {
			continue
		}

		for _, limit := range limits {
			// Key combines client + scope + window for independent tracking
			key := l.buildKey(clientKey, string(scope), limit)

			exceeded, err := l.record(ctx, decision, key, limit)
			if err != nil {
				return nil, err
			}

			if exceeded {
				decision.Exceeded.Scope = scope
				decision.Exceeded.Message = l.policy.Message(scope)

				return decision, nil
			}
		}
	}

	return decision, nil
}

// record counts one request and folds the result into decision.
// It reports whether the limit was exceeded.
func (l *PolicyLimiter) record(ctx context.Context, decision *Decision, key string, limit LimitConfig) (bool, error) {
	usage, err := l.store.Record(ctx, key, limit.Window)
	if err != nil {
		return false, err
	}

	remaining := max(limit.Max-usage.Count, 0)
	if decision.Quota == nil || remaining < decision.Quota.Remaining {
		decision.Quota = &Quota{Limit: limit.Max, Remaining: remaining, ResetAt: usage.ResetAt}
	}

	if usage.Count <= limit.Max {
		return false, nil
	}

	decision.Allowed = false
	decision.Quota = &Quota{Limit: limit.Max, Remaining: 0, ResetAt: usage.ResetAt}
	decision.Exceeded = &LimitExceeded{
		Config:  limit,
		Count:   usage.Count,
		ResetAt: usage.ResetAt,
	}

	return true, nil
}

// buildKey creates a unique rate limit key for the client, scope, and window combination.
func (l *PolicyLimiter) buildKey(clientKey, scope string, limit LimitConfig) string {
	return fmt.Sprintf("%s:%s:%d", clientKey, scope, limit.Window.Milliseconds())
}

// Policy returns the policy the limiter enforces.
func (l *PolicyLimiter) Policy() *Policy {
	return l.policy
}
