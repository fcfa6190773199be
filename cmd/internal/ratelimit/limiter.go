package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"copydesk/cmd/internal/metrics"
	"copydesk/cmd/internal/securitystore"
)

// Policy is a named limit.
type Policy struct {
	Namespace string
	Limit     int
	Window    time.Duration
}

// Policies applied by the auth and admin endpoints.
var (
	LoginIP        = Policy{Namespace: "login_ip", Limit: 5, Window: 60 * time.Second}
	LoginUsername  = Policy{Namespace: "login_username", Limit: 20, Window: time.Hour}
	RefreshSession = Policy{Namespace: "refresh_session", Limit: 10, Window: 60 * time.Second}
	RevealUser     = Policy{Namespace: "reveal_user", Limit: 3, Window: 10 * time.Minute}
)

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Count      int64
}

// Limiter counts hits in a securitystore.Store.
type Limiter struct {
	store   securitystore.Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Limiter over store.
func New(store securitystore.Store, log *slog.Logger, m *metrics.Metrics) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{store: store, log: log, metrics: m}
}

// Key returns the counter key for namespace and identifier.
func Key(namespace, identifier string) string {
	return "rl:" + namespace + ":" + identifier
}

// Check records one hit and reports whether it is within limit.
// Allowed iff the post-increment count is <= limit.
func (l *Limiter) Check(ctx context.Context, namespace, identifier string, limit int, window time.Duration) Decision {
	count, remaining := l.store.IncrementWithWindow(ctx, Key(namespace, identifier), window)

	d := Decision{
		Allowed:    count <= int64(limit),
		RetryAfter: remaining,
		Count:      count,
	}
	l.metrics.RateLimitDecision(namespace, d.Allowed)
	if !d.Allowed {
		l.log.Debug("ratelimit.denied", "namespace", namespace, "count", count, "limit", limit)
	}
	return d
}

// Enforce is Check that returns *ExceededError when the hit is over limit.
func (l *Limiter) Enforce(ctx context.Context, namespace, identifier string, limit int, window time.Duration) error {
	d := l.Check(ctx, namespace, identifier, limit, window)
	if d.Allowed {
		return nil
	}
	return &ExceededError{
		Namespace:  namespace,
		Limit:      limit,
		Window:     window,
		Count:      d.Count,
		RetryAfter: d.RetryAfter,
	}
}

// EnforcePolicy is Enforce with a Policy.
func (l *Limiter) EnforcePolicy(ctx context.Context, p Policy, identifier string) error {
	return l.Enforce(ctx, p.Namespace, identifier, p.Limit, p.Window)
}

// AsExceeded unwraps err into *ExceededError.
func AsExceeded(err error) (*ExceededError, bool) {
	var e *ExceededError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
