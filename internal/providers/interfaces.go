package providers

import (
	"context"

	"github.com/noteflux/ai-router/internal/types"
)

// Provider is the invocation boundary the routing core depends on. A
// provider turns (task, text) into generated text plus usage metadata; the
// wire protocol behind the call is opaque to the caller. Failures must come
// back tagged (*types.ProviderError) so the retry controller can branch on
// the error kind.
type Provider interface {
	// ID returns the provider's identity in the closed provider set.
	ID() types.ProviderID

	// Invoke performs one generation call.
	Invoke(ctx context.Context, task types.TaskType, text string) (*types.ProviderResult, error)

	// HealthCheck verifies the provider is reachable and credentialed.
	HealthCheck(ctx context.Context) error
}

// taskInstructions maps each task type to the instruction sent ahead of the
// user content. Shared by all providers so behavior differs only by backend.
var taskInstructions = map[types.TaskType]string{
	types.TaskSummary:            "Summarize the following text concisely, preserving the key points.",
	types.TaskKeywordExtraction:  "Extract the most relevant keywords from the following text as a comma-separated list.",
	types.TaskCategorization:     "Assign the following text to the single best-fitting category and name it.",
	types.TaskEnhancement:        "Improve the clarity and structure of the following text without changing its meaning.",
	types.TaskQuestionGeneration: "Generate insightful questions that the following text answers or raises.",
	types.TaskAnalysis:           "Analyze the following text and describe its main themes, tone and structure.",
}

// InstructionFor returns the instruction for a task type.
func InstructionFor(task types.TaskType) string {
	if instr, ok := taskInstructions[task]; ok {
		return instr
	}
	return taskInstructions[types.TaskAnalysis]
}
