// Package ratelimit tracks the catalog backend's rate limit and gates
// requests. It reads the X-RateLimit-Remaining, X-RateLimit-Reset and
// Retry-After headers and keeps the state in a storage.Store so that every
// process sharing the store backs off together.
package ratelimit

import (
	"time"
)

// StateKey is the store key holding the shared state.
const StateKey = "ratelimit:catalog"

// Thresholds for rate limit decisions.
const (
	// ThresholdWarning applies throttling when fewer requests remain.
	ThresholdWarning = 10

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 50
)

// UnknownRemaining marks a state learned only from Retry-After.
const UnknownRemaining = -1

// State is the last known rate limit state of the catalog backend.
type State struct {
	// Remaining requests in the current window, or UnknownRemaining.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	// BlockedUntil is set from Retry-After on 429/503 responses.
	BlockedUntil time.Time `json:"blocked_until,omitempty"`

	// LastUpdate is when the state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// defaultState is assumed until the backend reports otherwise.
func defaultState(now time.Time) *State {
	return &State{Remaining: UnknownRemaining, LastUpdate: now}
}

// IsStale reports whether the state is older than maxAge.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// NeedsBlock reports whether requests must wait: the backend asked for a
// pause, or the window is exhausted and has not reset yet.
func (s *State) NeedsBlock(now time.Time) bool {
	if now.Before(s.BlockedUntil) {
		return true
	}
	return s.Remaining == 0 && now.Before(s.ResetAt)
}

// NeedsThrottling reports whether requests should slow down.
func (s *State) NeedsThrottling(now time.Time) bool {
	return s.Remaining > 0 && s.Remaining < ThresholdWarning && now.Before(s.ResetAt)
}

// IsHealthy reports whether no restriction applies.
func (s *State) IsHealthy(now time.Time) bool {
	if s.NeedsBlock(now) || s.NeedsThrottling(now) {
		return false
	}
	return s.Remaining == UnknownRemaining || s.Remaining >= ThresholdHealthy || !now.Before(s.ResetAt)
}

// WaitDuration returns how long a blocked request should wait.
func (s *State) WaitDuration(now time.Time) time.Duration {
	until := s.BlockedUntil
	if s.Remaining == 0 && s.ResetAt.After(until) {
		until = s.ResetAt
	}
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}
