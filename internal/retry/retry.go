// Package retry executes fallible operations with bounded exponential
// backoff. It knows nothing about what it wraps: an operation opts in
// to retries by returning an error that wraps *Transient.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Transient marks an error as safe to retry. RetryAfter, when positive,
// is a server-provided wait hint that overrides the computed backoff
// delay for the next wait only.
type Transient struct {
	Err        error
	RetryAfter time.Duration
}

func (e *Transient) Error() string { return e.Err.Error() }
func (e *Transient) Unwrap() error { return e.Err }

// Policy configures the retry loop.
type Policy struct {
	Retries  int           // additional attempts after the first
	Delay    time.Duration // initial wait between attempts
	Backoff  float64       // multiplier applied to the delay after each wait
	MaxDelay time.Duration // cap on any single wait

	// Sleep overrides the wait implementation; tests use it to observe
	// delays without sleeping. Nil means a real, context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy mirrors the API client defaults.
func DefaultPolicy() Policy {
	return Policy{Retries: 3, Delay: time.Second, Backoff: 2.0, MaxDelay: time.Minute}
}

// Do runs op up to p.Retries+1 times. Non-transient errors propagate
// immediately; after exhausting all attempts the last transient failure
// is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}

	delay := p.Delay
	var last error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var tr *Transient
		if !errors.As(err, &tr) {
			return zero, err
		}
		last = err

		if attempt == p.Retries {
			break
		}

		wait := delay
		if tr.RetryAfter > 0 {
			wait = tr.RetryAfter
		}
		wait = min(wait, p.MaxDelay)

		slog.Warn("attempt failed, retrying",
			"attempt", attempt+1,
			"attempts", p.Retries+1,
			"wait", wait,
			"error", err)

		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
		delay = min(time.Duration(float64(delay)*p.Backoff), p.MaxDelay)
	}

	return zero, last
}

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
