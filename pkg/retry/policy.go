// Package retry runs operations under a bounded exponential-backoff policy.
//
// A [Policy] is a plain value: a retry count bound, an elapsed-time bound and
// a classifier deciding which failures are worth another attempt. Policies are
// passed explicitly to the code that retries; there is no shared instance.
//
//	p := retry.WithTimeout(5 * time.Second)
//	err := p.Do(ctx, func() error {
//	    return lock.TryAcquire()
//	})
//
// When the bound is reached the last failure is returned unchanged, so callers
// can keep matching it with [errors.Is].
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// DefaultBase is the first backoff sleep when [Policy.Base] is zero.
const DefaultBase = time.Millisecond

// Default bounds used by [Default]. They are tuned for filesystem lock
// contention: short sleeps, a generous overall deadline.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxDelay = 100 * time.Millisecond
)

// Policy configures how an operation is retried.
//
// The zero value retries every error forever with a 1ms doubling backoff.
// Use the constructors to get a bounded policy.
type Policy struct {
	// MaxRetries bounds the number of retries after the first attempt.
	// Zero means no count bound.
	MaxRetries uint64

	// Timeout bounds the elapsed time across all attempts, measured from
	// the start of Do. Zero means no time bound.
	Timeout time.Duration

	// Base is the first backoff sleep. Each subsequent sleep doubles.
	// Zero means [DefaultBase].
	Base time.Duration

	// MaxDelay caps a single sleep. Zero means no cap.
	MaxDelay time.Duration

	// Retryable reports whether err is worth another attempt.
	// Nil retries every error.
	Retryable func(err error) bool

	// OnFailure, if set, is called after every failed attempt with the
	// 1-based attempt number, before the policy decides whether to retry.
	OnFailure func(attempt uint64, err error)
}

// WithMaxRetries returns a policy bounded only by retry count.
func WithMaxRetries(n uint64) Policy {
	return Policy{MaxRetries: n}
}

// WithTimeout returns a policy bounded only by elapsed time.
func WithTimeout(d time.Duration) Policy {
	return Policy{Timeout: d}
}

// New returns a policy bounded by both retry count and elapsed time.
// Whichever bound is reached first stops retrying.
func New(maxRetries uint64, timeout time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, Timeout: timeout}
}

// Default returns the policy used for filesystem lock contention:
// 30s overall, sleeps capped at 100ms, retrying only [IsContention] errors.
func Default() Policy {
	return Policy{
		Timeout:   DefaultTimeout,
		MaxDelay:  DefaultMaxDelay,
		Retryable: IsContention,
	}
}

// WithRetryable returns a copy of p using fn as its classifier.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn

	return p
}

// Do calls op until it succeeds, returns a non-retryable error, or a bound is
// reached. The last error from op is returned unchanged.
//
// A cancelled ctx stops retrying and returns ctx.Err().
func (p Policy) Do(ctx context.Context, op func() error) error {
	var attempt uint64

	return goretry.Do(ctx, p.backoff(), func(context.Context) error {
		attempt++

		err := op()
		if err == nil {
			return nil
		}

		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		return goretry.RetryableError(err)
	})
}

// Call is [Policy.Do] for operations that produce a value.
// On failure the zero value of T is returned with the last error.
func Call[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var result T

	err := p.Do(ctx, func() error {
		v, err := op()
		if err != nil {
			return err
		}

		result = v

		return nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return result, nil
}

// backoff builds a fresh backoff chain. It must be built per call: the
// elapsed-time bound starts counting when the chain is constructed.
func (p Policy) backoff() goretry.Backoff {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}

	b := goretry.NewExponential(base)

	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}

	if p.MaxRetries > 0 {
		b = goretry.WithMaxRetries(p.MaxRetries, b)
	}

	if p.Timeout > 0 {
		b = goretry.WithMaxDuration(p.Timeout, b)
	}

	return b
}
