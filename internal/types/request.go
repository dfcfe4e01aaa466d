package types

import (
	"fmt"
	"strings"
	"time"
)

// TaskType identifies what the caller wants the AI backend to do with the text.
type TaskType string

const (
	TaskSummary            TaskType = "summary"
	TaskKeywordExtraction  TaskType = "keyword_extraction"
	TaskCategorization     TaskType = "categorization"
	TaskEnhancement        TaskType = "enhancement"
	TaskQuestionGeneration TaskType = "question_generation"
	TaskAnalysis           TaskType = "analysis"
)

// AllTaskTypes lists every valid task type. Lookup tables are built over this
// set at construction time so a missing cell is caught early, not at runtime.
var AllTaskTypes = []TaskType{
	TaskSummary,
	TaskKeywordExtraction,
	TaskCategorization,
	TaskEnhancement,
	TaskQuestionGeneration,
	TaskAnalysis,
}

// ParseTaskType validates a task type string.
func ParseTaskType(s string) (TaskType, error) {
	for _, t := range AllTaskTypes {
		if string(t) == strings.TrimSpace(strings.ToLower(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task type: %q", s)
}

// PreferenceWeights carries optional per-request user priorities, each in [0,1].
type PreferenceWeights struct {
	Privacy float64 `json:"privacy" yaml:"privacy"`
	Speed   float64 `json:"speed" yaml:"speed"`
	Cost    float64 `json:"cost" yaml:"cost"`
}

// ProcessingRequest is the immutable unit of work entering the pipeline.
type ProcessingRequest struct {
	ID          string             `json:"id"`
	Text        string             `json:"text"`
	Task        TaskType           `json:"task"`
	Preferences *PreferenceWeights `json:"preferences,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Validate rejects malformed requests before any provider call is considered.
func (r *ProcessingRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return &ProviderError{Kind: KindValidation, Message: "request text is empty"}
	}
	if _, err := ParseTaskType(string(r.Task)); err != nil {
		return &ProviderError{Kind: KindValidation, Message: err.Error()}
	}
	if p := r.Preferences; p != nil {
		for name, v := range map[string]float64{"privacy": p.Privacy, "speed": p.Speed, "cost": p.Cost} {
			if v < 0 || v > 1 {
				return &ProviderError{Kind: KindValidation, Message: fmt.Sprintf("preference %s out of range [0,1]: %v", name, v)}
			}
		}
	}
	return nil
}

// ProviderResult is what a provider invocation returns: the generated text
// plus usage metadata. The wire protocol behind it is the provider's concern.
type ProviderResult struct {
	Text       string        `json:"text"`
	TokensUsed int           `json:"tokens_used"`
	Provider   ProviderID    `json:"provider"`
	Duration   time.Duration `json:"duration"`
}
