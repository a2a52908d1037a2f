package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlbam_client_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlbam_client_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlbam_client_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
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
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	return c
}

// nextBackoff returns the wait before the attempt after one that waited
// current, capped at MaxBackoff.
func (c RetryConfig) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * c.BackoffMultiplier)
	if next > c.MaxBackoff {
		next = c.MaxBackoff
	}
	return next
}

// jitter spreads d by ±20%.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// Errors that shouldRetry rejects are returned unchanged after the first
// attempt. Context cancellation during a wait ends the loop.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := errorClass(err)

		if !shouldRetry(err) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(class).Inc()

		wait := jitter(backoff)
		retryBackoffSeconds.WithLabelValues(class).Observe(wait.Seconds())

		logger.Debug().
			Err(err).
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", class).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = config.nextBackoff(backoff)
	}

	class := errorClass(lastErr)
	retryExhaustedTotal.WithLabelValues(class).Inc()
	logger.Warn().
		Err(lastErr).
		Str("error_class", class).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
