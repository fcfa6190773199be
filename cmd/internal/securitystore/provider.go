package securitystore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"copydesk/cmd/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Config drives backend selection.
type Config struct {
	// RedisURL selects the networked backend when non-empty (redis:// or rediss://).
	RedisURL string

	// Production forbids the in-memory fallback.
	Production bool

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig keeps store calls bounded so a rate-limit check resolves within the request.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Provider selects a Store once and hands out the cached choice.
//
// The first successful selection wins for the lifetime of the Provider;
// Reset drops it so tests can force re-construction.
type Provider struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	store  Store
	client *redis.Client
}

// NewProvider builds a Provider. Nothing is dialled until Get.
func NewProvider(cfg Config, log *slog.Logger, m *metrics.Metrics) *Provider {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	return &Provider{cfg: cfg, log: log, metrics: m}
}

// Get returns the selected Store, selecting it on first use.
//
// Redis is preferred when a URL is configured and PING succeeds. Outside
// production an unreachable or unconfigured Redis falls back to memory; in
// production Get returns ErrRedisRequired instead.
func (p *Provider) Get(ctx context.Context) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return p.store, nil
	}

	if p.cfg.RedisURL == "" {
		if p.cfg.Production {
			return nil, fmt.Errorf("%w: COPYDESK_REDIS_URL is not set", ErrRedisRequired)
		}
		p.log.Info("securitystore.backend.memory", "reason", "redis_url_unset")
		return p.selectLocked(NewMemoryStore(), nil), nil
	}

	client, err := p.dial(ctx)
	if err != nil {
		if p.cfg.Production {
			return nil, fmt.Errorf("%w: %v", ErrRedisRequired, err)
		}
		p.log.Warn("securitystore.backend.memory", "reason", "redis_unreachable", "err", err)
		return p.selectLocked(NewMemoryStore(), nil), nil
	}

	p.log.Info("securitystore.backend.redis", "addr", client.Options().Addr)
	return p.selectLocked(NewRedisStore(client, p.log, p.metrics), client), nil
}

// Ready reports whether the selected backend is usable right now.
func (p *Provider) Ready(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	selected := p.store != nil
	p.mu.Unlock()

	if !selected {
		_, err := p.Get(ctx)
		return err
	}
	if client == nil {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()
	return client.Ping(pctx).Err()
}

// Reset drops the cached selection and closes any Redis client it owned.
func (p *Provider) Reset() {
	p.mu.Lock()
	client := p.client
	p.store = nil
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
}

// Close releases backend resources.
func (p *Provider) Close() error {
	p.Reset()
	return nil
}

func (p *Provider) dial(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(p.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = p.cfg.DialTimeout
	opts.ReadTimeout = p.cfg.ReadTimeout
	opts.WriteTimeout = p.cfg.WriteTimeout

	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (p *Provider) selectLocked(s Store, client *redis.Client) Store {
	p.store = s
	p.client = client
	p.metrics.StoreSelected(s.Backend())
	return s
}
