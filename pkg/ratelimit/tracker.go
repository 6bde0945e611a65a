package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	catalogRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_rate_limit_remaining",
		Help: "Requests remaining in the catalog rate limit window",
	})

	catalogRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_blocks_total",
		Help: "Total number of catalog requests blocked by the rate limit",
	})

	catalogRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_throttles_total",
		Help: "Total number of catalog requests throttled by the rate limit",
	})
)

// ThrottleDelay is the pause applied to throttled requests.
const ThrottleDelay = 500 * time.Millisecond

// Tracker monitors the catalog rate limit and gates requests.
type Tracker struct {
	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// NewTracker creates a new rate limit tracker over store.
func NewTracker(store storage.Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		panic("store cannot be nil")
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// GetState returns the stored state, or a default healthy state when
// nothing has been recorded.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	raw, err := t.store.Get(ctx, StateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return defaultState(t.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.logger.Warn().Err(err).Msg("Discarding unreadable rate limit state")
		return defaultState(t.now()), nil
	}
	return &state, nil
}

// UpdateFromResponse records the rate limit headers of a catalog response.
// Responses without any rate limit header leave the state untouched.
func (t *Tracker) UpdateFromResponse(ctx context.Context, status int, headers http.Header) error {
	now := t.now()

	remainStr := headers.Get("X-RateLimit-Remaining")
	retryAfter := headers.Get("Retry-After")
	blocked := retryAfter != "" && (status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable)
	if remainStr == "" && !blocked {
		return nil
	}

	state := defaultState(now)
	if remainStr != "" {
		remain, err := strconv.Atoi(strings.TrimSpace(remainStr))
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
		}
		reset, err := parseSeconds(headers.Get("X-RateLimit-Reset"))
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
		}
		state.Remaining = remain
		state.ResetAt = now.Add(reset)
		catalogRateLimitRemaining.Set(float64(remain))
	}
	if blocked {
		wait, err := parseRetryAfter(retryAfter, now)
		if err != nil {
			return fmt.Errorf("parse Retry-After header: %w", err)
		}
		state.BlockedUntil = now.Add(wait)
	}
	// a pause another response asked for still holds
	if prev, err := t.GetState(ctx); err == nil && now.Before(prev.BlockedUntil) && prev.BlockedUntil.After(state.BlockedUntil) {
		state.BlockedUntil = prev.BlockedUntil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}
	if err := t.store.Set(ctx, StateKey, string(data)); err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	switch {
	case state.NeedsBlock(now):
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.WaitDuration(now)).
			Msg("Catalog rate limit reached - requests will be blocked")
	case state.NeedsThrottling(now):
		t.logger.Warn().Int("remaining", state.Remaining).Msg("Catalog rate limit low - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", state.Remaining).Time("reset_at", state.ResetAt).Msg("Catalog rate limit state updated")
	}
	return nil
}

// ShouldAllowRequest reports whether a request may go out now. A blocked
// state returns false with the time to wait. A throttled state sleeps for
// ThrottleDelay first. Store failures allow the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, time.Duration, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Debug().Err(err).Msg("Rate limit state unavailable, allowing request")
		return true, 0, nil
	}

	now := t.now()
	if state.NeedsBlock(now) {
		wait := state.WaitDuration(now)
		t.logger.Warn().Dur("wait_duration", wait).Msg("Catalog rate limit - blocking request")
		catalogRateLimitBlocksTotal.Inc()
		return false, wait, nil
	}

	if state.NeedsThrottling(now) {
		catalogRateLimitThrottlesTotal.Inc()
		if err := t.sleep(ctx, ThrottleDelay); err != nil {
			return false, 0, err
		}
	}
	return true, 0, nil
}

// StaleAfter is the age past which a recorded state is reported stale.
const StaleAfter = 5 * time.Minute

// Health summarizes the gate for status endpoints.
type Health struct {
	Remaining    int       `json:"remaining"`
	Healthy      bool      `json:"healthy"`
	Stale        bool      `json:"stale"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// Health reports the current gate state without waiting or counting.
func (t *Tracker) Health(ctx context.Context) (Health, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return Health{}, err
	}
	now := t.now()
	h := Health{
		Remaining: state.Remaining,
		Healthy:   state.IsHealthy(now),
		Stale:     state.IsStale(now, StaleAfter),
	}
	if state.NeedsBlock(now) {
		h.BlockedUntil = now.Add(state.WaitDuration(now))
	}
	return h, nil
}

// parseSeconds reads a non-negative delta-seconds header; empty is zero.
func parseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return time.Duration(n) * time.Second, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, error) {
	if d, err := parseSeconds(v); err == nil {
		return d, nil
	}
	at, err := http.ParseTime(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if d := at.Sub(now); d > 0 {
		return d, nil
	}
	return 0, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
