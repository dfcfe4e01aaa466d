package routing

import (
	"time"

	"github.com/noteflux/ai-router/internal/types"
)

// defaultTokenEstimate is the token count assumed when a cost cell is unset.
const defaultTokenEstimate = 1000

// fallbackDuration is the expected time when a latency cell is unset.
const fallbackDuration = 3 * time.Second

// costPer1KTokens is the static per-provider rate in cost units.
var costPer1KTokens = map[types.ProviderID]float64{
	types.ProviderCloudPrimary:   0.003,
	types.ProviderCloudSecondary: 0.002,
	types.ProviderLocal:          0.0,
}

// expectedTokens is the a-priori token estimate per provider and task.
// These are lookup values, not measurements; cells may be absent.
var expectedTokens = map[types.ProviderID]map[types.TaskType]int{
	types.ProviderCloudPrimary: {
		types.TaskSummary:            800,
		types.TaskKeywordExtraction:  400,
		types.TaskCategorization:     300,
		types.TaskEnhancement:        1500,
		types.TaskQuestionGeneration: 600,
		types.TaskAnalysis:           1200,
	},
	types.ProviderCloudSecondary: {
		types.TaskSummary:            800,
		types.TaskKeywordExtraction:  400,
		types.TaskCategorization:     300,
		types.TaskEnhancement:        1500,
		types.TaskQuestionGeneration: 600,
		types.TaskAnalysis:           1200,
	},
	types.ProviderLocal: {},
}

// expectedDuration is the a-priori wall-clock estimate per provider and task.
var expectedDuration = map[types.ProviderID]map[types.TaskType]time.Duration{
	types.ProviderCloudPrimary: {
		types.TaskSummary:            2 * time.Second,
		types.TaskKeywordExtraction:  1 * time.Second,
		types.TaskCategorization:     1 * time.Second,
		types.TaskEnhancement:        4 * time.Second,
		types.TaskQuestionGeneration: 2 * time.Second,
		types.TaskAnalysis:           3 * time.Second,
	},
	types.ProviderCloudSecondary: {
		types.TaskSummary:            2 * time.Second,
		types.TaskKeywordExtraction:  1 * time.Second,
		types.TaskCategorization:     1 * time.Second,
		types.TaskEnhancement:        3 * time.Second,
		types.TaskQuestionGeneration: 2 * time.Second,
		types.TaskAnalysis:           3 * time.Second,
	},
	types.ProviderLocal: {
		types.TaskSummary:            8 * time.Second,
		types.TaskKeywordExtraction:  4 * time.Second,
		types.TaskCategorization:     4 * time.Second,
		types.TaskEnhancement:        15 * time.Second,
		types.TaskQuestionGeneration: 6 * time.Second,
		types.TaskAnalysis:           10 * time.Second,
	},
}

// EstimateCost returns the expected monetary cost of running the task on the
// provider. Unset cells fall back to the default token estimate times the
// provider's per-token rate.
func EstimateCost(provider types.ProviderID, task types.TaskType) float64 {
	tokens := defaultTokenEstimate
	if row, ok := expectedTokens[provider]; ok {
		if t, ok := row[task]; ok {
			tokens = t
		}
	}
	return float64(tokens) * costPer1KTokens[provider] / 1000
}

// EstimateTime returns the expected wall-clock duration of running the task
// on the provider, falling back to a fixed default for unset cells.
func EstimateTime(provider types.ProviderID, task types.TaskType) time.Duration {
	if row, ok := expectedDuration[provider]; ok {
		if d, ok := row[task]; ok {
			return d
		}
	}
	return fallbackDuration
}
