// Package retry holds the single retry policy used wherever a generation
// step is re-run: option regeneration inside the quiz generator, whole-quiz
// regeneration in the quiz service, and transient provider errors in the
// LLM client.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff selects how the wait between attempts grows.
type Backoff string

const (
	BackoffNone        Backoff = "none"
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// ErrExhausted is returned when every attempt reported failure without an
// underlying error (e.g. the generated text parsed to zero items).
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy describes how many times an operation may run and how long to
// wait in between.
type Policy struct {
	// MaxAttempts is the total number of runs, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	Backoff     Backoff
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Jitter is the +/- fraction applied to exponential waits (0.2 = 20%).
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means every non-context error is retryable.
	Retryable func(error) bool

	// WaitFor lets the caller override the computed wait for a specific
	// error, e.g. a rate limit with a Retry-After hint. Zero means no override.
	WaitFor func(error) time.Duration
}

// Immediate returns a policy of n total attempts with no waiting.
func Immediate(n int) Policy {
	return Policy{MaxAttempts: n, Backoff: BackoffNone}
}

// Exponential returns a policy with exponential backoff and 20% jitter.
func Exponential(n int, initial, max time.Duration, multiplier float64) Policy {
	return Policy{
		MaxAttempts: n,
		Backoff:     BackoffExponential,
		InitialWait: initial,
		MaxWait:     max,
		Multiplier:  multiplier,
		Jitter:      0.2,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The attempt index passed to fn starts at 0.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	n := p.attempts()

	for attempt := range n {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == n-1 {
			break
		}

		wait := p.Wait(attempt, err)
		if wait <= 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// Until runs fn until it reports done, returning the value of the last
// attempt. Errors from fn abort immediately. When every attempt reports
// not done, the zero-progress value of the final attempt is returned with
// ErrExhausted.
func Until[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, bool, error)) (T, error) {
	var last T
	var hard error

	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		v, done, err := fn(ctx, attempt)
		if err != nil {
			hard = err
			return nil
		}
		last = v
		if !done {
			return ErrExhausted
		}
		return nil
	})
	if hard != nil {
		return last, hard
	}
	return last, err
}

// Wait computes the pause after the given zero-based attempt.
func (p Policy) Wait(attempt int, err error) time.Duration {
	if p.WaitFor != nil && err != nil {
		if d := p.WaitFor(err); d > 0 {
			return d
		}
	}

	switch p.Backoff {
	case BackoffFixed:
		return p.InitialWait
	case BackoffExponential:
		mult := p.Multiplier
		if mult <= 0 {
			mult = 2
		}
		wait := float64(p.InitialWait) * math.Pow(mult, float64(attempt))
		if p.MaxWait > 0 && wait > float64(p.MaxWait) {
			wait = float64(p.MaxWait)
		}
		if p.Jitter > 0 {
			wait += wait * p.Jitter * (2*rand.Float64() - 1)
		}
		if wait < 0 {
			wait = 0
		}
		return time.Duration(wait)
	default:
		return 0
	}
}
