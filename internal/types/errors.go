package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind tags every failure with the class the retry controller branches
// on. The retryable/terminal split is a pattern match on this tag, never
// string sniffing of error text.
type ErrorKind string

const (
	// KindValidation: malformed request, rejected before any provider call.
	KindValidation ErrorKind = "validation"
	// KindSensitivityAnalysis: classifier failure; callers assume
	// highly-confidential as the fail-safe default.
	KindSensitivityAnalysis ErrorKind = "sensitivity_analysis"
	// KindProviderUnavailable: no credentialed/online provider. Not retried.
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	// KindRateLimited: upstream 429, retryable after the server-suggested delay.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransientServer: upstream 5xx, retryable with backoff.
	KindTransientServer ErrorKind = "transient_server"
	// KindAuth: upstream 401/403, terminal. Retrying wastes quota.
	KindAuth ErrorKind = "auth"
	// KindNetwork: connection-level failure, terminal.
	KindNetwork ErrorKind = "network"
	// KindRetryExhausted: all retry attempts failed; wraps the last error.
	KindRetryExhausted ErrorKind = "retry_exhausted"
)

// ProviderError is the tagged error carried across the provider boundary and
// through the retry controller.
type ProviderError struct {
	Kind     ErrorKind
	Provider ProviderID
	Message  string

	// RetryAfter carries the server-suggested delay for KindRateLimited.
	RetryAfter time.Duration

	Err error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: provider %s: %s", e.Kind, e.Provider, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewRetryExhausted wraps the last underlying failure once all attempts are spent.
func NewRetryExhausted(provider ProviderID, attempts int, last error) *ProviderError {
	return &ProviderError{
		Kind:     KindRetryExhausted,
		Provider: provider,
		Message:  fmt.Sprintf("all %d attempts failed", attempts),
		Err:      last,
	}
}

// KindOf extracts the error kind, or "" for untagged errors.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRetryable reports whether the retry controller may attempt the call again.
// Only rate-limit and transient-server failures qualify; everything else,
// auth failures in particular, propagates immediately.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTransientServer:
		return true
	default:
		return false
	}
}

// RetryAfterOf returns the server-suggested delay for a rate-limit error,
// or zero when none was provided.
func RetryAfterOf(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Kind == KindRateLimited {
		return pe.RetryAfter
	}
	return 0
}
