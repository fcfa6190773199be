package securitystore

import "errors"

var (
	// ErrRedisRequired is fatal: production must run against a reachable Redis.
	ErrRedisRequired = errors.New("redis is required and must be reachable in production")

	// ErrInvalidTTL is returned when a non-positive TTL is passed to SetWithExpiry.
	ErrInvalidTTL = errors.New("ttl must be positive")
)
