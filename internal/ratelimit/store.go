package ratelimit

import (
	"context"
	"time"
)

// Usage is the state of one counter after recording a request.
type Usage struct {
	// Count is the number of requests in the current window, including this one.
	Count int64
	// ResetAt is when the current window ends and the counter starts over.
	ResetAt time.Time
}

// Store defines the interface for rate limit data storage.
type Store interface {
	// Record counts a request against key in a fixed window of the given length
	// and returns the resulting usage. The increment must be atomic per key.
	Record(ctx context.Context, key string, window time.Duration) (Usage, error)
}
