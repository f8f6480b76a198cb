package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/drugraph/drugraph-api/internal/resilience"
)

// RetryClient decorates a Client with bounded retries, exponential backoff
// and a circuit breaker. Only client-level failures are retried; callers
// that successfully parse an unsatisfying response do not come back here.
type RetryClient struct {
	inner       Client
	breaker     *resilience.Breaker
	maxAttempts int
	baseDelay   time.Duration

	// Timeout caps each individual attempt. Zero means the caller's
	// context alone bounds the call.
	Timeout time.Duration
}

// NewRetryClient wraps inner with maxAttempts tries and a backoff that
// starts at baseDelay and doubles after every failed attempt.
func NewRetryClient(inner Client, breaker *resilience.Breaker, maxAttempts int, baseDelay time.Duration) *RetryClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryClient{
		inner:       inner,
		breaker:     breaker,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

func (r *RetryClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		var text string
		err := r.breaker.Execute(func() error {
			attemptCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}
			var genErr error
			text, genErr = r.inner.Generate(attemptCtx, prompt)
			return genErr
		})
		if err == nil {
			return text, nil
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			// Retrying against an open breaker is pointless.
			return "", err
		}
		lastErr = err

		if attempt < r.maxAttempts {
			log.Printf("[LLM] Attempt %d/%d failed: %v. Retrying in %s", attempt, r.maxAttempts, err, delay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *RetryClient) Name() string {
	return r.inner.Name()
}
