package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhisek/dalil/internal/retry"
)

// RetryProvider is a decorator that retries transient errors using the
// shared retry policy with exponential backoff and jitter.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic. A MaxAttempts of 1 or less
// returns p unchanged.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts <= 1 {
		return p
	}
	return &RetryProvider{inner: p, config: cfg}
}

// policy builds the retry policy for one Generate call. Invalid responses
// get a single retry per call, so the classifier carries call-local state.
func (r *RetryProvider) policy() retry.Policy {
	p := retry.Exponential(r.config.MaxAttempts, r.config.InitialWait, r.config.MaxWait, r.config.Multiplier)

	var mu sync.Mutex
	invalidRetried := false
	p.Retryable = func(err error) bool {
		mu.Lock()
		defer mu.Unlock()
		return shouldRetry(err, &invalidRetried)
	}
	p.WaitFor = func(err error) time.Duration {
		var rl *ErrRateLimit
		if errors.As(err, &rl) {
			return rl.RetryAfter
		}
		return 0
	}
	return p
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := r.policy().Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		resp, err = r.inner.Generate(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// shouldRetry determines if an error is retryable.
func shouldRetry(err error, invalidRetried *bool) bool {
	// Max tokens is a configuration issue, not transient.
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// Invalid response gets one retry.
	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	// Rate limits, unavailability, and network errors are transient.
	return true
}
