package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/types"
)

// Operation is one outbound provider call. Each attempt receives the
// caller's context and must honor its cancellation.
type Operation func(ctx context.Context) (*types.ProviderResult, error)

// RetryConfig controls the bounded-retry loop around provider calls.
type RetryConfig struct {
	MaxRetries         int           `yaml:"max_retries"`
	BaseDelay          time.Duration `yaml:"base_delay"`
	ExponentialBackoff bool          `yaml:"exponential_backoff"`

	// MaxRetryAfter caps a server-suggested rate-limit delay.
	MaxRetryAfter time.Duration `yaml:"max_retry_after"`
}

// DefaultRetryConfig matches the documented retry contract.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:         3,
		BaseDelay:          time.Second,
		ExponentialBackoff: true,
		MaxRetryAfter:      time.Minute,
	}
}

// Executor wraps provider calls in rate limiting and the retry policy.
// The taxonomy is the central design decision here: rate-limit and
// transient-server failures retry, auth and everything else propagate
// immediately — retrying an auth failure wastes quota and delays correct
// user feedback.
type Executor struct {
	limiter *Limiter
	config  *RetryConfig
	logger  *logrus.Logger
}

// NewExecutor creates a retry controller over the given limiter.
func NewExecutor(limiter *Limiter, config *RetryConfig, logger *logrus.Logger) *Executor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxRetryAfter <= 0 {
		config.MaxRetryAfter = time.Minute
	}
	return &Executor{
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// Execute runs the operation under the rate limiter, retrying per the error
// taxonomy. Attempts run 0..MaxRetries inclusive; when every attempt fails
// the last error is wrapped in a retry-exhausted error.
func (e *Executor) Execute(ctx context.Context, provider types.ProviderID, op Operation) (*types.ProviderResult, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if err := e.limiter.AcquireSlot(ctx); err != nil {
			return nil, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !types.IsRetryable(err) {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"provider": provider,
				"kind":     types.KindOf(err),
			}).Warn("Terminal provider error, not retrying")
			return nil, err
		}

		if attempt == e.config.MaxRetries {
			break
		}

		delay := e.retryDelay(err, attempt)
		e.logger.WithFields(logrus.Fields{
			"provider": provider,
			"attempt":  attempt + 1,
			"kind":     types.KindOf(err),
			"delay_ms": delay.Milliseconds(),
		}).Info("Retrying provider call after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, types.NewRetryExhausted(provider, e.config.MaxRetries+1, lastErr)
}

// retryDelay picks the next backoff: the server-suggested delay (capped) for
// rate limits, exponential or flat base delay for transient server errors.
func (e *Executor) retryDelay(err error, attempt int) time.Duration {
	if retryAfter := types.RetryAfterOf(err); retryAfter > 0 {
		if retryAfter > e.config.MaxRetryAfter {
			return e.config.MaxRetryAfter
		}
		return retryAfter
	}

	if e.config.ExponentialBackoff {
		multiplier := math.Pow(2, float64(attempt))
		return time.Duration(float64(e.config.BaseDelay) * multiplier)
	}
	return e.config.BaseDelay
}

// BatchResult is the per-item outcome of a batch execution.
type BatchResult struct {
	Index  int
	Result *types.ProviderResult
	Err    error
}

// ExecuteBatch runs every operation with the same per-call rate limiting and
// retry policy, continuing past individual failures. The returned slice has
// one entry per operation, in order.
func (e *Executor) ExecuteBatch(ctx context.Context, provider types.ProviderID, ops []Operation) []BatchResult {
	results := make([]BatchResult, len(ops))
	for i, op := range ops {
		result, err := e.Execute(ctx, provider, op)
		results[i] = BatchResult{Index: i, Result: result, Err: err}
		if err != nil && ctx.Err() != nil {
			// Context gone: mark the rest cancelled rather than spinning.
			for j := i + 1; j < len(ops); j++ {
				results[j] = BatchResult{Index: j, Err: ctx.Err()}
			}
			break
		}
	}
	return results
}
