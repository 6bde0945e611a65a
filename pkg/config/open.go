package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/granth-library/pkg/catalog"
	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// OpenStore connects the configured cache backend. The returned close
// function releases it and is never nil.
func (c CacheConfig) OpenStore(ctx context.Context) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.Backend {
	case BackendMemory, "":
		return storage.NewMemoryStore(c.QuotaBytes), noop, nil

	case BackendRedis:
		opts, err := redisOptions(c.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		ro := storage.DefaultRedisOptions()
		ro.Prefix = c.RedisPrefix
		// reads still check the TTL; this only reclaims abandoned keys
		ro.Expiration = c.TTL
		return storage.NewRedisStore(client, ro), client.Close, nil

	case BackendSQLite:
		store, err := storage.OpenSQLite(ctx, c.SQLitePath, c.QuotaBytes)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if !strings.Contains(raw, "://") {
		return &redis.Options{Addr: raw}, nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}

// OpenSource connects the configured catalog backend. limiter, when not
// nil, gates REST requests. The returned close function is never nil.
func (c CatalogConfig) OpenSource(ctx context.Context, limiter catalog.RateLimiter) (catalog.Source, func(), error) {
	noop := func() {}

	switch c.Backend {
	case CatalogREST, "":
		cfg := catalog.DefaultRESTConfig(c.URL, c.APIKey)
		if c.Timeout > 0 {
			cfg.Timeout = c.Timeout
		}
		src, err := catalog.NewRESTSource(cfg)
		if err != nil {
			return nil, noop, err
		}
		if limiter != nil {
			src.SetRateLimiter(limiter)
		}
		return src, noop, nil

	case CatalogPostgres:
		src, err := catalog.OpenPostgres(ctx, c.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown catalog backend %q", c.Backend)
	}
}
