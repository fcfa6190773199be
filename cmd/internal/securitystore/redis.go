package securitystore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"copydesk/cmd/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// INCR and the first-hit PEXPIRE run in one script so a concurrent first
// creation can never reset an open window.
const incrWindowScript = `
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`

var incrWindowLua = redis.NewScript(incrWindowScript)

// RedisStore is the networked backend.
type RedisStore struct {
	client  redis.UniversalClient
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore(client redis.UniversalClient, log *slog.Logger, m *metrics.Metrics) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, log: log, metrics: m}
}

func (s *RedisStore) Backend() string { return BackendRedis }

// IncrementWithWindow fails open: on any Redis error it reports (1, window)
// so a flaky backend cannot lock users out. The error is logged and counted.
func (s *RedisStore) IncrementWithWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration) {
	if window < time.Second {
		window = time.Second
	}

	res, err := incrWindowLua.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err == nil && len(res) != 2 {
		err = errors.New("unexpected script reply")
	}
	if err != nil {
		s.log.Warn("securitystore.redis.incr.fail", "err", err, "key", key)
		s.metrics.StoreBackendError("incr")
		return 1, window
	}

	return res[0], clampRemaining(time.Duration(res[1]) * time.Millisecond)
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Warn("securitystore.redis.set.fail", "err", err, "key", key)
		s.metrics.StoreBackendError("set")
		return err
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		s.log.Warn("securitystore.redis.get.fail", "err", err, "key", key)
		s.metrics.StoreBackendError("get")
		return "", false, err
	}
	return v, true, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
