package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 or skips the test.
// Integration tests under tests/integration use testcontainers instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, DefaultRedisOptions())
}

func TestRedisStore_SetGetRemove(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, DefaultRedisOptions())
	ctx := context.Background()

	if _, err := store.Get(ctx, "bookCache_v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "bookCache_v1", "payload"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// prefix is applied on the server side key
	raw, err := client.Get(ctx, "granth:bookCache_v1").Result()
	if err != nil {
		t.Fatalf("raw get failed: %v", err)
	}
	if raw != "payload" {
		t.Errorf("raw value = %q, want %q", raw, "payload")
	}

	got, err := store.Get(ctx, "bookCache_v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "payload" {
		t.Errorf("Get = %q, want %q", got, "payload")
	}

	if err := store.Remove(ctx, "bookCache_v1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, "bookCache_v1"); err != nil {
		t.Fatalf("Remove of missing key failed: %v", err)
	}
}

func TestRedisStore_Expiration(t *testing.T) {
	client := setupTestRedis(t)
	opts := DefaultRedisOptions()
	opts.Expiration = time.Hour
	store := NewRedisStore(client, opts)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := client.TTL(ctx, "granth:k").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL = %v, want ~1h", ttl)
	}
}

type fakeReplyErr string

func (e fakeReplyErr) Error() string { return string(e) }
func (fakeReplyErr) RedisError()     {}

func TestClassifyRedisError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil reply", redis.Nil, ErrNotFound},
		{"maxmemory", fakeReplyErr("OOM command not allowed when used memory > 'maxmemory'."), ErrQuotaExceeded},
		{"connection", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), ErrUnavailable},
		{"timeout", context.DeadlineExceeded, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyRedisError("get", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyRedisError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	t.Run("other reply errors pass through", func(t *testing.T) {
		got := classifyRedisError("get", fakeReplyErr("WRONGTYPE Operation against a key"))
		if errors.Is(got, ErrUnavailable) || errors.Is(got, ErrQuotaExceeded) || errors.Is(got, ErrNotFound) {
			t.Errorf("unexpected classification: %v", got)
		}
	})
}
