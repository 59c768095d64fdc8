package ratelimit

import "time"

// LimitConfig is a ceiling of Max requests per Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// DefaultMessage is returned to clients when a limit without its own message is exceeded.
const DefaultMessage = "too many requests, please try again later."

// Policy maps each scope to the limits that apply to it.
type Policy struct {
	Limits   map[Scope][]LimitConfig
	Messages map[Scope]string
}

// PolicyConfig holds the tunable ceilings of the three limiter classes.
type PolicyConfig struct {
	GlobalMax    int64
	GlobalWindow time.Duration
	StrictMax    int64
	StrictWindow time.Duration
	LikeMax      int64
	LikeWindow   time.Duration
}

// DefaultPolicyConfig returns the stock ceilings: a generous global limit,
// a low one for adding and deleting, and a moderate short one for likes.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		GlobalMax:    100,
		GlobalWindow: 15 * time.Minute,
		StrictMax:    10,
		StrictWindow: 5 * time.Minute,
		LikeMax:      30,
		LikeWindow:   time.Minute,
	}
}

// NewPolicy builds the policy for the global, strict and like classes.
func NewPolicy(cfg PolicyConfig) *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeGlobal, cfg.GlobalMax, cfg.GlobalWindow).
		AddLimit(ScopeStrict, cfg.StrictMax, cfg.StrictWindow).
		WithMessage(ScopeStrict, "Too many attempts, slow down!").
		AddLimit(ScopeLike, cfg.LikeMax, cfg.LikeWindow).
		WithMessage(ScopeLike, "Too many likes, slow down!").
		Build()
}

// PolicyBuilder assembles a Policy.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder creates a builder for an empty policy.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{
		policy: &Policy{
			Limits:   make(map[Scope][]LimitConfig),
			Messages: make(map[Scope]string),
		},
	}
}

// AddLimit adds a ceiling of maxRequests per window to scope.
func (b *PolicyBuilder) AddLimit(scope Scope, maxRequests int64, window time.Duration) *PolicyBuilder {
	b.policy.Limits[scope] = append(b.policy.Limits[scope], LimitConfig{Window: window, Max: maxRequests})

	return b
}

// WithMessage sets the rejection message of scope.
func (b *PolicyBuilder) WithMessage(scope Scope, msg string) *PolicyBuilder {
	b.policy.Messages[scope] = msg

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}

// Message returns the rejection message for scope.
func (p *Policy) Message(scope Scope) string {
	if msg, ok := p.Messages[scope]; ok {
		return msg
	}

	return DefaultMessage
}
