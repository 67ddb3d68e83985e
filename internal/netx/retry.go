package netx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy configures attempt count and exponential backoff behavior.
//
// Attempts is the total number of tries, including the first one. BaseDelay is
// the initial backoff duration, and MaxDelay caps each computed delay before
// jitter is added.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 300 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	return p
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. RetryOperation stops immediately when
// fn returns such an error and hands back the original cause.
func Permanent(err error) error {
	return &permanentError{err: err}
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

// RetryOperation executes fn until success, context cancellation, a permanent
// error, or the attempt budget is exhausted.
//
// Delays between attempts use exponential backoff with jitter. The last error
// from fn is returned (unwrapped if permanent) when the budget runs out.
func RetryOperation[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	policy = policy.withDefaults()
	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		var p *permanentError
		if errors.As(err, &p) {
			return zero, p.err
		}
		if attempt >= policy.Attempts-1 {
			break
		}

		timer := time.NewTimer(backoffWithJitter(policy, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr == nil {
		return zero, fmt.Errorf("retry failed without error")
	}
	return zero, unwrapPermanent(lastErr)
}

func backoffWithJitter(policy RetryPolicy, attempt int) time.Duration {
	d := policy.BaseDelay * (1 << attempt)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	j := time.Duration(rand.Int63n(int64(d/4 + 1)))
	return d + j
}
