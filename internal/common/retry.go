package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted is wrapped into the error of a read that kept failing.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryableError marks a backend failure as worth another attempt or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// ReadPolicy is the backoff for idempotent backend reads.
type ReadPolicy struct {
	Attempts int
	// Delay before the second attempt. It doubles after every failure up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultReadPolicy gives an interactive command three tries within about a second.
var DefaultReadPolicy = ReadPolicy{Attempts: 3, Delay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

// RetryRead calls read until it succeeds, fails with an error IsRetryable
// rejects, or runs out of attempts. what names the read in logs and errors.
// Job submissions and cancellations are not idempotent and never go through it.
func RetryRead[T any](ctx context.Context, what string, p ReadPolicy, read func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.Attempts <= 0 {
		p.Attempts = DefaultReadPolicy.Attempts
	}
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultReadPolicy.Delay
	}

	for attempt := 1; ; attempt++ {
		v, err := read(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		if attempt >= p.Attempts {
			return zero, fmt.Errorf("%s: %w after %d attempts: %w", what, ErrRetriesExhausted, attempt, err)
		}

		slog.Warn("Backend read failed, retrying", "read", what, "attempt", attempt, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
