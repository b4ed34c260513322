// Package retry runs storage operations with exponential backoff. Only
// producers retry; the ledger core reports transient failures and leaves
// the decision to its caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/l10nledger/ledger/pkg/apperrors"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0, spread applied to every delay
	MaxSameErrorType int     // After N consecutive same-class errors, give up (0 disables)
}

// DefaultConfig returns the defaults for database operations:
// 3 retries from 100ms, doubling, capped at 5s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// backoff waits for the current delay and returns the next one.
func backoff(ctx context.Context, cfg *Config, delay time.Duration) (time.Duration, error) {
	timer := time.NewTimer(applyJitter(delay, cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return delay, ctx.Err()
	}

	next := time.Duration(float64(delay) * cfg.Multiplier)
	if next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next, nil
}

// Do executes fn until it succeeds or MaxRetries is exhausted, returning the
// last error. Context cancellation during a wait returns ctx.Err().
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value, like opening a pool.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if attempt < cfg.MaxRetries {
			if delay, err = backoff(ctx, cfg, delay); err != nil {
				return result, err
			}
		}
	}

	return result, lastErr
}

// IsRetryable reports whether err is a transient storage failure.
// Validation, referential and conflict errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrUnknownReference) ||
		errors.Is(err, apperrors.ErrConflict) {
		return false
	}
	if errors.Is(err, apperrors.ErrUnavailable) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLState(pgErr.Code)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"too many connections",
		"i/o timeout",
		"network is unreachable",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func retryableSQLState(code string) bool {
	switch {
	case code == "40001", code == "40P01": // serialization failure, deadlock
		return true
	case strings.HasPrefix(code, "08"): // connection exception
		return true
	case strings.HasPrefix(code, "53"): // insufficient resources
		return true
	case strings.HasPrefix(code, "57P"): // operator intervention, e.g. admin shutdown
		return true
	}
	return false
}

// classifyErrorType buckets an error so repeated failures of one kind can be
// detected.
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "sqlstate_" + pgErr.Code
	}
	if pgconn.Timeout(err) {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "broken pipe"):
		return "broken_pipe"
	case errors.Is(err, apperrors.ErrUnavailable):
		return "unavailable"
	}
	return "unknown"
}

// DoIfRetryable only retries transient errors and returns permanent ones
// immediately. After MaxSameErrorType consecutive failures of the same class
// the error is treated as permanent.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		currentErrorType := classifyErrorType(err)
		if currentErrorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, currentErrorType, err)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = currentErrorType
		}

		if attempt < cfg.MaxRetries {
			if delay, err = backoff(ctx, cfg, delay); err != nil {
				return err
			}
		}
	}

	return lastErr
}
