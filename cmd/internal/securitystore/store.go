package securitystore

import (
	"context"
	"time"
)

// Backend names reported by Store.Backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store is the capability set shared by both backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// IncrementWithWindow atomically increments key. The first increment of a
	// window sets the TTL to window; later increments never reset it.
	// It returns the post-increment count and the remaining TTL (>= 1s).
	IncrementWithWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration)

	// SetWithExpiry upserts key, replacing both value and TTL.
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key. A missing or expired key is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)

	// Backend names the implementation ("redis" or "memory").
	Backend() string
}

func clampRemaining(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d
}
