package types

import (
	"fmt"
	"regexp"
)

// ProcessingModeSettings is the persisted operator configuration consumed by
// the Decision Engine. It round-trips through the flat key-value settings
// store; a missing store falls back to DefaultProcessingModeSettings.
type ProcessingModeSettings struct {
	PreferredMode        ProcessingMode `json:"preferred_mode" yaml:"preferred_mode"`
	PrivacyThreshold     float64        `json:"privacy_threshold" yaml:"privacy_threshold"`
	CostThreshold        float64        `json:"cost_threshold" yaml:"cost_threshold"`
	TimeThresholdSeconds float64        `json:"time_threshold_seconds" yaml:"time_threshold_seconds"`
	QualityThreshold     float64        `json:"quality_threshold" yaml:"quality_threshold"`
	AutoSwitchEnabled    bool           `json:"auto_switch_enabled" yaml:"auto_switch_enabled"`
	NotificationsEnabled bool           `json:"notifications_enabled" yaml:"notifications_enabled"`
	ContentRules         []ContentRule  `json:"content_rules" yaml:"content_rules"`
}

// DefaultProcessingModeSettings returns the documented defaults used when no
// stored value exists.
func DefaultProcessingModeSettings() ProcessingModeSettings {
	return ProcessingModeSettings{
		PreferredMode:        ModeHybrid,
		PrivacyThreshold:     0.5,
		CostThreshold:        0.05,
		TimeThresholdSeconds: 10,
		QualityThreshold:     0.7,
		AutoSwitchEnabled:    true,
		NotificationsEnabled: true,
	}
}

// Validate checks the settings before they are persisted or applied.
func (s ProcessingModeSettings) Validate() error {
	if _, err := ParseProcessingMode(string(s.PreferredMode)); err != nil {
		return err
	}
	if s.PrivacyThreshold < 0 || s.PrivacyThreshold > 1 {
		return fmt.Errorf("privacy_threshold must be in [0, 1], got %v", s.PrivacyThreshold)
	}
	if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold must be in [0, 1], got %v", s.QualityThreshold)
	}
	if s.CostThreshold < 0 {
		return fmt.Errorf("cost_threshold cannot be negative, got %v", s.CostThreshold)
	}
	if s.TimeThresholdSeconds < 0 {
		return fmt.Errorf("time_threshold_seconds cannot be negative, got %v", s.TimeThresholdSeconds)
	}
	for _, rule := range s.ContentRules {
		if rule.Name == "" {
			return fmt.Errorf("content rule with empty name")
		}
		if _, err := regexp.Compile(rule.MatchPattern); err != nil {
			return fmt.Errorf("content rule %q: invalid pattern: %w", rule.Name, err)
		}
		if _, err := ParseProcessingMode(string(rule.RequiredMode)); err != nil {
			return fmt.Errorf("content rule %q: %w", rule.Name, err)
		}
	}
	return nil
}
