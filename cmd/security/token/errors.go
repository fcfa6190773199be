package token

import "errors"

// Public, stable errors for callers.
var (
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")

	ErrSecretMissing = errors.New("token signing secret missing")
	ErrInvalidTTL    = errors.New("token ttl must be positive")
)
