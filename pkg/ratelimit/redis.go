package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces rate limit keys in a shared Redis database.
const DefaultKeyPrefix = "contact-relay:ratelimit:"

var (
	ErrEmptyRedisURL       = errors.New("ratelimit: redis url is empty")
	ErrInvalidRedisURL     = errors.New("ratelimit: redis url must use redis:// or rediss://")
	ErrRedisConnection     = errors.New("ratelimit: redis connection failed")
	ErrRedisWindowNotFound = errors.New("ratelimit: redis returned no counter")
)

// OpenRedis parses url and pings the server before returning the client.
// Supports both redis:// and rediss:// (TLS) URL schemes.
func OpenRedis(ctx context.Context, url string) (redis.UniversalClient, error) {
	if url == "" {
		return nil, ErrEmptyRedisURL
	}
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, ErrInvalidRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrInvalidRedisURL, err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisConnection, err)
	}

	return client, nil
}

// RedisStore keeps fixed windows in Redis so several replicas share one budget per client.
// The key expiry is the window, which also takes care of eviction.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an open client. An empty prefix selects DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Hit increments the counter for key and reads its TTL in one MULTI/EXEC transaction.
// A counter without a TTL (the first hit of a window) gets one with PEXPIRE, so the
// window never slides and no command newer than Redis 2.6 is needed.
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, size time.Duration) (int64, time.Time, error) {
	k := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis hit %q: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := s.client.PExpire(ctx, k, size).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis expire %q: %w", key, err)
		}
		remaining = size
	}

	count := incr.Val()
	if count == 0 {
		return 0, time.Time{}, ErrRedisWindowNotFound
	}

	start := now
	if remaining > 0 && remaining <= size {
		start = now.Add(remaining - size)
	}

	return count, start, nil
}

// Name identifies the store in logs and metrics.
func (s *RedisStore) Name() string {
	return "redis"
}

// Healthcheck pings Redis.
func (s *RedisStore) Healthcheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrRedisConnection, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
