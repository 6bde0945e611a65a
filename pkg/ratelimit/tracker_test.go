package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/rs/zerolog"
)

func newTestTracker(t *testing.T) (*Tracker, *storage.MemoryStore, *[]time.Duration) {
	t.Helper()
	store := storage.NewMemoryStore(0)
	tracker := NewTracker(store, zerolog.Nop())
	tracker.now = func() time.Time { return now }

	var slept []time.Duration
	tracker.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return tracker, store, &slept
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestNewTracker_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewTracker should panic with nil store")
		}
	}()
	NewTracker(nil, zerolog.Nop())
}

func TestGetState_Default(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Remaining != UnknownRemaining || !state.IsHealthy(now) {
		t.Errorf("default state = %+v, want unknown and healthy", state)
	}
}

func TestGetState_Corrupt(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	store.Set(context.Background(), StateKey, "{broken")

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Remaining != UnknownRemaining {
		t.Errorf("corrupt state should fall back to default, got %+v", state)
	}
}

func TestUpdateFromResponse(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		headers       http.Header
		wantErr       bool
		wantStored    bool
		wantRemaining int
		wantBlocked   time.Duration
	}{
		{
			name:    "no headers",
			status:  http.StatusOK,
			headers: http.Header{},
		},
		{
			name:          "remaining and reset",
			status:        http.StatusOK,
			headers:       headers("X-RateLimit-Remaining", "42", "X-RateLimit-Reset", "60"),
			wantStored:    true,
			wantRemaining: 42,
		},
		{
			name:          "429 with seconds",
			status:        http.StatusTooManyRequests,
			headers:       headers("Retry-After", "15"),
			wantStored:    true,
			wantRemaining: UnknownRemaining,
			wantBlocked:   15 * time.Second,
		},
		{
			name:          "503 with http date",
			status:        http.StatusServiceUnavailable,
			headers:       headers("Retry-After", now.Add(2*time.Minute).Format(http.TimeFormat)),
			wantStored:    true,
			wantRemaining: UnknownRemaining,
			wantBlocked:   2 * time.Minute,
		},
		{
			name:    "retry after on success is ignored",
			status:  http.StatusOK,
			headers: headers("Retry-After", "15"),
		},
		{
			name:    "bad remaining",
			status:  http.StatusOK,
			headers: headers("X-RateLimit-Remaining", "lots"),
			wantErr: true,
		},
		{
			name:    "bad reset",
			status:  http.StatusOK,
			headers: headers("X-RateLimit-Remaining", "3", "X-RateLimit-Reset", "-1"),
			wantErr: true,
		},
		{
			name:    "bad retry after",
			status:  http.StatusTooManyRequests,
			headers: headers("Retry-After", "soon"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, store, _ := newTestTracker(t)
			ctx := context.Background()

			err := tracker.UpdateFromResponse(ctx, tt.status, tt.headers)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateFromResponse() error = %v, wantErr %v", err, tt.wantErr)
			}

			if stored := store.Len() > 0; stored != tt.wantStored {
				t.Fatalf("stored = %v, want %v", stored, tt.wantStored)
			}
			if !tt.wantStored {
				return
			}

			state, _ := tracker.GetState(ctx)
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if got := state.BlockedUntil.Sub(now); tt.wantBlocked > 0 && got != tt.wantBlocked {
				t.Errorf("BlockedUntil - now = %v, want %v", got, tt.wantBlocked)
			}
		})
	}
}

func TestShouldAllowRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		tracker, _, slept := newTestTracker(t)
		allowed, wait, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed || wait != 0 || len(*slept) != 0 {
			t.Errorf("got (%v, %v, %v), slept %v", allowed, wait, err, *slept)
		}
	})

	t.Run("throttled", func(t *testing.T) {
		tracker, _, slept := newTestTracker(t)
		tracker.UpdateFromResponse(ctx, http.StatusOK, headers("X-RateLimit-Remaining", "3", "X-RateLimit-Reset", "30"))

		allowed, _, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Errorf("throttled request should be allowed, got %v, %v", allowed, err)
		}
		if len(*slept) != 1 || (*slept)[0] != ThrottleDelay {
			t.Errorf("slept = %v, want one ThrottleDelay", *slept)
		}
	})

	t.Run("blocked", func(t *testing.T) {
		tracker, _, _ := newTestTracker(t)
		tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers("Retry-After", "20"))

		allowed, wait, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || allowed || wait != 20*time.Second {
			t.Errorf("got (%v, %v, %v), want blocked for 20s", allowed, wait, err)
		}

		// the block lifts once the clock passes it
		tracker.now = func() time.Time { return now.Add(21 * time.Second) }
		if allowed, _, _ := tracker.ShouldAllowRequest(ctx); !allowed {
			t.Error("request should be allowed after Retry-After elapsed")
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		tracker, store, _ := newTestTracker(t)
		store.SetDisabled(true)
		allowed, _, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Errorf("store failure should allow the request, got %v, %v", allowed, err)
		}
	})
}

func TestSharedState(t *testing.T) {
	store := storage.NewMemoryStore(0)
	a := NewTracker(store, zerolog.Nop())
	b := NewTracker(store, zerolog.Nop())
	ctx := context.Background()

	if err := a.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers("Retry-After", "60")); err != nil {
		t.Fatal(err)
	}
	if allowed, _, _ := b.ShouldAllowRequest(ctx); allowed {
		t.Error("second tracker on the same store should see the block")
	}
}

func TestUpdateFromResponse_KeepsActiveBlock(t *testing.T) {
	store := storage.NewMemoryStore(0)
	a := NewTracker(store, zerolog.Nop())
	b := NewTracker(store, zerolog.Nop())
	a.now = func() time.Time { return now }
	b.now = func() time.Time { return now.Add(5 * time.Second) }
	ctx := context.Background()

	if err := a.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers("Retry-After", "60")); err != nil {
		t.Fatal(err)
	}
	// a success seen elsewhere reports a healthy window
	if err := b.UpdateFromResponse(ctx, http.StatusOK, headers("X-RateLimit-Remaining", "90", "X-RateLimit-Reset", "30")); err != nil {
		t.Fatal(err)
	}

	state, _ := b.GetState(ctx)
	if state.Remaining != 90 {
		t.Errorf("Remaining = %d, want 90", state.Remaining)
	}
	if want := now.Add(60 * time.Second); !state.BlockedUntil.Equal(want) {
		t.Errorf("BlockedUntil = %v, want %v", state.BlockedUntil, want)
	}
	if allowed, wait, _ := b.ShouldAllowRequest(ctx); allowed || wait != 55*time.Second {
		t.Errorf("got (%v, %v), want blocked for 55s", allowed, wait)
	}

	// an expired block is not carried forward
	b.now = func() time.Time { return now.Add(2 * time.Minute) }
	if err := b.UpdateFromResponse(ctx, http.StatusOK, headers("X-RateLimit-Remaining", "80", "X-RateLimit-Reset", "30")); err != nil {
		t.Fatal(err)
	}
	if state, _ := b.GetState(ctx); !state.BlockedUntil.IsZero() {
		t.Errorf("BlockedUntil = %v, want zero after the pause elapsed", state.BlockedUntil)
	}
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		tracker, _, _ := newTestTracker(t)
		h, err := tracker.Health(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !h.Healthy || h.Stale || h.Remaining != UnknownRemaining || !h.BlockedUntil.IsZero() {
			t.Errorf("Health() = %+v, want healthy unknown state", h)
		}
	})

	t.Run("blocked", func(t *testing.T) {
		tracker, _, _ := newTestTracker(t)
		tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers("Retry-After", "20"))
		h, _ := tracker.Health(ctx)
		if h.Healthy || !h.BlockedUntil.Equal(now.Add(20*time.Second)) {
			t.Errorf("Health() = %+v, want blocked for 20s", h)
		}
	})

	t.Run("stale", func(t *testing.T) {
		tracker, _, _ := newTestTracker(t)
		tracker.UpdateFromResponse(ctx, http.StatusOK, headers("X-RateLimit-Remaining", "70", "X-RateLimit-Reset", "30"))
		tracker.now = func() time.Time { return now.Add(StaleAfter + time.Second) }
		h, _ := tracker.Health(ctx)
		if !h.Stale || !h.Healthy || h.Remaining != 70 {
			t.Errorf("Health() = %+v, want stale but healthy", h)
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		tracker, store, _ := newTestTracker(t)
		store.SetDisabled(true)
		if _, err := tracker.Health(ctx); err == nil {
			t.Error("Health should report the store failure")
		}
	})
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); err == nil {
		t.Error("sleepCtx should return the context error")
	}
}
