package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrInvalidInput is returned when a required argument is missing.
	ErrInvalidInput = errors.New("invalid input")
)
