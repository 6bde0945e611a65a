package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Prefix is prepended to every key (e.g. "granth:").
	Prefix string

	// Expiration is applied to every Set. Zero keeps keys until removed.
	Expiration time.Duration

	// OpTimeout bounds each command. Zero uses the caller's context as is.
	OpTimeout time.Duration
}

// DefaultRedisOptions returns the options used by the proxy.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:    "granth:",
		OpTimeout: 150 * time.Millisecond,
	}
}

// RedisStore stores values as plain Redis strings.
type RedisStore struct {
	redis *redis.Client
	opts  RedisOptions
}

// NewRedisStore creates a store backed by redisClient.
func NewRedisStore(redisClient *redis.Client, opts RedisOptions) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		opts:  opts,
	}
}

func (s *RedisStore) key(k string) string {
	return s.opts.Prefix + k
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		return "", classifyRedisError("get", err)
	}
	return v, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(key), value, s.opts.Expiration).Err(); err != nil {
		return classifyRedisError("set", err)
	}
	return nil
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return classifyRedisError("del", err)
	}
	return nil
}

// classifyRedisError maps go-redis failures onto the storage sentinels.
// A server at maxmemory answers writes with an "OOM" error reply.
func classifyRedisError(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		if strings.HasPrefix(replyErr.Error(), "OOM ") {
			return fmt.Errorf("%w: redis %s: %v", ErrQuotaExceeded, op, err)
		}
		return fmt.Errorf("redis %s: %w", op, err)
	}

	return fmt.Errorf("%w: redis %s: %v", ErrUnavailable, op, err)
}
