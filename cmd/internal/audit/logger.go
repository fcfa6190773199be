package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"copydesk/cmd/internal/metrics"
)

// Sink persists a single event.
type Sink interface {
	Insert(ctx context.Context, e Event) error
}

// Logger is the best-effort front for a Sink.
type Logger struct {
	sink    Sink
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration
}

// New builds a Logger. A nil sink discards events.
func New(sink Sink, log *slog.Logger, m *metrics.Metrics) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		sink:    sink,
		log:     log,
		metrics: m,
		now:     time.Now,
		timeout: 2 * time.Second,
	}
}

// Record writes e. It never fails the caller: errors are logged and counted.
//
// The write is detached from ctx cancellation so a client disconnect does not
// drop the trail, but it is still bounded by the logger's own timeout.
func (l *Logger) Record(ctx context.Context, e Event) {
	if l == nil || l.sink == nil {
		return
	}
	e.Action = Action(strings.TrimSpace(string(e.Action)))
	if e.Action == "" {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}
	e.UserAgent = truncate(e.UserAgent, 512)
	e.Reason = truncate(e.Reason, 255)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.sink.Insert(wctx, e); err != nil {
		l.log.Error("auth.audit.insert.fail", "err", err, "action", string(e.Action))
		l.metrics.AuditWrite(false)
		return
	}
	l.metrics.AuditWrite(true)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
