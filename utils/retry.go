package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// permanentError marks an error that retrying cannot fix.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so RetryConfig.Do gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Factor multiplies the delay after each failed attempt. Zero means 1.5.
	Factor float64
	Pacing *Pacing
	Logger *Logger
}

// Do executes fn with exponential back-off retry logic. The n-th retry waits
// BaseDelay * Factor^(n-1) plus pacing jitter.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || ctx.Err() != nil {
			break
		}

		if attempt < attempts {
			delay := r.Backoff(attempt)
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, attempts, lastErr, delay)
			if err := r.Pacing.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s interrupted: %w", operationName, err)
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// Backoff returns the base wait before retry number attempt (1-based),
// without jitter.
func (r *RetryConfig) Backoff(attempt int) time.Duration {
	factor := r.Factor
	if factor == 0 {
		factor = 1.5
	}
	return time.Duration(float64(r.BaseDelay) * math.Pow(factor, float64(attempt-1)))
}
