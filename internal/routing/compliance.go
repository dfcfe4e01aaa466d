package routing

import (
	"github.com/noteflux/ai-router/internal/types"
)

// complianceMatrix answers "may provider P process content at sensitivity
// level S". The one hard safety rule of the system: the local provider is
// compliant at every level, cloud providers only for public and internal
// content. The table is fixed at compile time and not configurable.
var complianceMatrix = map[types.ProviderID]map[types.SensitivityLevel]bool{
	types.ProviderCloudPrimary: {
		types.SensitivityPublic:             true,
		types.SensitivityInternal:           true,
		types.SensitivityConfidential:       false,
		types.SensitivityHighlyConfidential: false,
	},
	types.ProviderCloudSecondary: {
		types.SensitivityPublic:             true,
		types.SensitivityInternal:           true,
		types.SensitivityConfidential:       false,
		types.SensitivityHighlyConfidential: false,
	},
	types.ProviderLocal: {
		types.SensitivityPublic:             true,
		types.SensitivityInternal:           true,
		types.SensitivityConfidential:       true,
		types.SensitivityHighlyConfidential: true,
	},
}

// IsCompliant reports the compliance-matrix verdict for a provider/level pair.
func IsCompliant(provider types.ProviderID, level types.SensitivityLevel) bool {
	row, ok := complianceMatrix[provider]
	if !ok {
		return false
	}
	return row[level]
}
