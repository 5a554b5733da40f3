// Package retry provides a small bounded-backoff retry policy for
// transient failures against the remote task store.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// transientError marks an error as worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so IsTransient reports true for it. A nil err
// returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Policy describes a bounded exponential backoff. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap on any single delay
	Jitter      float64       // fraction of the delay randomized, 0..1
}

// DefaultPolicy matches the write-back behavior: three attempts, one
// second base delay doubling each time, capped at ten seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Do runs fn, retrying while it returns a transient error and attempts
// remain. Permanent errors and context cancellation stop immediately. The
// last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if werr := p.wait(ctx, attempt); werr != nil {
				return werr
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}

// wait sleeps for the backoff delay of the given attempt (1-based for the
// first retry), honoring context cancellation.
func (p Policy) wait(ctx context.Context, attempt int) error {
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 && delay > 0 {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) - spread/2 + rand.Float64()*spread)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
