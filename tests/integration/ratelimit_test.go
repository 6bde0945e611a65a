package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/granth-library/pkg/ratelimit"
	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/rs/zerolog"
)

// TestRateLimit_SharedAcrossProcesses checks two trackers on one Redis
// see each other's Retry-After block.
func TestRateLimit_SharedAcrossProcesses(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := storage.NewRedisStore(redisClient, storage.DefaultRedisOptions())
	first := ratelimit.NewTracker(store, zerolog.Nop())
	second := ratelimit.NewTracker(store, zerolog.Nop())

	if allowed, _, err := second.ShouldAllowRequest(ctx); err != nil || !allowed {
		t.Fatalf("Fresh state should allow requests: %v, %v", allowed, err)
	}

	h := http.Header{}
	h.Set("Retry-After", "30")
	if err := first.UpdateFromResponse(ctx, http.StatusTooManyRequests, h); err != nil {
		t.Fatalf("UpdateFromResponse failed: %v", err)
	}

	allowed, wait, err := second.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if allowed {
		t.Error("Second tracker should be blocked")
	}
	if wait <= 25*time.Second || wait > 30*time.Second {
		t.Errorf("wait = %v, want about 30s", wait)
	}

	// a later healthy response replaces the block
	h = http.Header{}
	h.Set("X-RateLimit-Remaining", "100")
	h.Set("X-RateLimit-Reset", "60")
	if err := second.UpdateFromResponse(ctx, http.StatusOK, h); err != nil {
		t.Fatalf("UpdateFromResponse failed: %v", err)
	}
	if allowed, _, _ := first.ShouldAllowRequest(ctx); !allowed {
		t.Error("First tracker should be allowed after the healthy update")
	}
}
