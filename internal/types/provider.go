package types

import (
	"fmt"
	"strings"
)

// ProviderID identifies one of the three AI backends. The set is closed:
// two remote providers and one local runtime.
type ProviderID string

const (
	ProviderCloudPrimary   ProviderID = "cloud-primary"
	ProviderCloudSecondary ProviderID = "cloud-secondary"
	ProviderLocal          ProviderID = "local"
)

// AllProviders lists every provider identity, cheapest cloud last-but-one so
// cost ranking (local < cloud-secondary < cloud-primary) reads off the slice.
var AllProviders = []ProviderID{
	ProviderLocal,
	ProviderCloudSecondary,
	ProviderCloudPrimary,
}

// IsCloud reports whether the provider is a remote backend.
func (p ProviderID) IsCloud() bool {
	return p == ProviderCloudPrimary || p == ProviderCloudSecondary
}

// ParseProviderID validates a provider identity string.
func ParseProviderID(s string) (ProviderID, error) {
	for _, p := range AllProviders {
		if string(p) == strings.TrimSpace(strings.ToLower(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider: %q", s)
}

// ProcessingMode is the policy governing provider selection. A mode is a
// policy, a provider is a target; the two are orthogonal.
type ProcessingMode string

const (
	ModeCloudOnly     ProcessingMode = "cloud-only"
	ModeLocalOnly     ProcessingMode = "local-only"
	ModeHybrid        ProcessingMode = "hybrid"
	ModeCostOptimized ProcessingMode = "cost-optimized"
	ModePrivacyFirst  ProcessingMode = "privacy-first"
)

// AllModes lists every processing mode.
var AllModes = []ProcessingMode{
	ModeCloudOnly,
	ModeLocalOnly,
	ModeHybrid,
	ModeCostOptimized,
	ModePrivacyFirst,
}

// ParseProcessingMode validates a mode string.
func ParseProcessingMode(s string) (ProcessingMode, error) {
	for _, m := range AllModes {
		if string(m) == strings.TrimSpace(strings.ToLower(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown processing mode: %q", s)
}
