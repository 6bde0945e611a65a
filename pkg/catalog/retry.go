package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// backoffFor scales the base backoff per error class.
// Rate limited requests wait longer than plain server errors.
func (c RetryConfig) backoffFor(class ErrorClass) time.Duration {
	if class == ErrorClassRateLimit {
		return c.InitialBackoff * 4
	}
	return c.InitialBackoff
}

// retryWithBackoff executes fn with exponential backoff.
// It respects context cancellation and adds jitter to prevent thundering herd.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	var backoff time.Duration

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := classOf(err)

		if !shouldRetry(class) {
			return lastErr
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		if backoff == 0 {
			backoff = cfg.backoffFor(class)
		}

		catalogRetriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	class := classOf(lastErr)
	catalogRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
