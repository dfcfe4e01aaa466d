package types

import (
	"time"
)

// EventType identifies what the notification hub is reporting.
type EventType string

const (
	EventModeSwitch     EventType = "mode_switch"
	EventFallback       EventType = "fallback"
	EventError          EventType = "error"
	EventRecommendation EventType = "recommendation"
)

// Severity grades an event for interested observers.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is a fire-and-forget notification emitted by the pipeline. The hub
// keeps only the most recent events; nothing blocks on delivery.
type Event struct {
	Type      EventType  `json:"type"`
	Severity  Severity   `json:"severity"`
	Message   string     `json:"message"`
	Provider  ProviderID `json:"provider,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
