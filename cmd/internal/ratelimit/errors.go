package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrExceeded is the sentinel wrapped by every *ExceededError.
var ErrExceeded = errors.New("rate limit exceeded")

// ExceededError carries the detail a client needs to back off.
type ExceededError struct {
	Namespace  string
	Limit      int
	Window     time.Duration
	Count      int64
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: %s (%d/%d in %s, retry after %s)",
		ErrExceeded.Error(), e.Namespace, e.Count, e.Limit, e.Window, e.RetryAfter)
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }

// RetryAfterSeconds rounds RetryAfter up to whole seconds (min 1) for the Retry-After header.
func (e *ExceededError) RetryAfterSeconds() int64 {
	return ceilSeconds(e.RetryAfter)
}

// WindowSeconds is Window in whole seconds.
func (e *ExceededError) WindowSeconds() int64 {
	return int64(e.Window / time.Second)
}

func ceilSeconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
