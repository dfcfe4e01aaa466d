package types

import (
	"time"
)

// ProcessingDecision is the Decision Engine's output for one request.
// Created once, consumed immediately by the caller and the metrics
// aggregator, never mutated.
type ProcessingDecision struct {
	RequestID string `json:"request_id"`

	SelectedProvider ProviderID     `json:"selected_provider"`
	SelectedMode     ProcessingMode `json:"selected_mode"`

	// Confidence of the selection, in [0,1].
	Confidence float64 `json:"confidence"`

	// Human-readable reasoning trace, in the order the factors were applied.
	Reasoning []string `json:"reasoning"`

	// FallbackProvider is set when the engine degraded from the requested
	// target (e.g. local-only with unsuitable input) or when a secondary
	// target exists for the hybrid branch.
	FallbackProvider ProviderID `json:"fallback_provider,omitempty"`

	EstimatedCost float64       `json:"estimated_cost"`
	EstimatedTime time.Duration `json:"estimated_time"`

	// PrivacyCompliant reports the compliance-matrix verdict for the finally
	// selected provider against the assessed sensitivity level. The engine
	// never refuses for business-logic reasons; a caller that must not send
	// non-compliant content checks this flag and aborts.
	PrivacyCompliant bool `json:"privacy_compliant"`

	Assessment SensitivityAssessment `json:"assessment"`
	Timestamp  time.Time             `json:"timestamp"`
}

// ContentRule is a static or user-configured override: when its pattern
// matches the request text, RequiredMode takes precedence over the computed
// mode. The compliance matrix still applies after the override.
type ContentRule struct {
	Name         string         `json:"name" yaml:"name"`
	MatchPattern string         `json:"match_pattern" yaml:"match_pattern"`
	RequiredMode ProcessingMode `json:"required_mode" yaml:"required_mode"`
	Priority     int            `json:"priority" yaml:"priority"`
	Active       bool           `json:"active" yaml:"active"`
}
