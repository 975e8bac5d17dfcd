// Package retry re-runs a failing operation a bounded number of times with
// linear backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// Defaults used when a Policy field is zero.
const (
	DefaultMaxAttempts = 2
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Policy controls how many attempts are made and how long to wait between
// them. The wait before attempt k+1 is BaseDelay * k.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy is two attempts with a 500ms pause in between.
var DefaultPolicy = Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		base = 0
	}
	return base * time.Duration(attempt)
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it without further attempts.
// Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs op until it succeeds, returns a permanent error, or the policy's
// attempts are used up. The last failure is returned unchanged, wrapping
// and permanent marker included, so IsPermanent and errors.As still see
// through it. Cancelling ctx during a wait returns ctx.Err() joined with
// the last failure.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	attempts := p.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if IsPermanent(err) {
			return zero, err
		}
		lastErr = err

		if attempt < attempts {
			if err := sleep(ctx, p.delay(attempt)); err != nil {
				return zero, errors.Join(err, lastErr)
			}
		}
	}

	return zero, lastErr
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
