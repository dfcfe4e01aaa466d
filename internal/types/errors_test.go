package types

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProviderError_Message(t *testing.T) {
	err := &ProviderError{Kind: KindAuth, Provider: ProviderCloudPrimary, Message: "invalid api key"}
	got := err.Error()
	for _, want := range []string{"auth", "cloud-primary", "invalid api key"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, want it to contain %q", got, want)
		}
	}

	// Without a message the wrapped error speaks.
	wrapped := &ProviderError{Kind: KindNetwork, Err: errors.New("connection refused")}
	if !strings.Contains(wrapped.Error(), "connection refused") {
		t.Errorf("Error() = %q, want wrapped cause in message", wrapped.Error())
	}
}

func TestKindOf(t *testing.T) {
	err := &ProviderError{Kind: KindRateLimited, Message: "slow down"}
	if got := KindOf(err); got != KindRateLimited {
		t.Errorf("KindOf = %q, want %q", got, KindRateLimited)
	}

	// Tagged errors stay recognizable through fmt wrapping.
	if got := KindOf(errorsJoin(err)); got != KindRateLimited {
		t.Errorf("KindOf through wrapping = %q, want %q", got, KindRateLimited)
	}

	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(untagged) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func errorsJoin(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindRateLimited, true},
		{KindTransientServer, true},
		{KindValidation, false},
		{KindAuth, false},
		{KindNetwork, false},
		{KindProviderUnavailable, false},
		{KindRetryExhausted, false},
		{KindSensitivityAnalysis, false},
	}

	for _, tt := range tests {
		err := &ProviderError{Kind: tt.kind}
		if got := IsRetryable(err); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}

	if IsRetryable(errors.New("untagged")) {
		t.Error("untagged errors must not be retried")
	}
}

func TestRetryAfterOf(t *testing.T) {
	limited := &ProviderError{Kind: KindRateLimited, RetryAfter: 2 * time.Second}
	if got := RetryAfterOf(limited); got != 2*time.Second {
		t.Errorf("RetryAfterOf = %v, want 2s", got)
	}

	// Only rate-limit errors carry a server-suggested delay.
	transient := &ProviderError{Kind: KindTransientServer, RetryAfter: 2 * time.Second}
	if got := RetryAfterOf(transient); got != 0 {
		t.Errorf("RetryAfterOf(transient) = %v, want 0", got)
	}
}

func TestNewRetryExhausted(t *testing.T) {
	cause := &ProviderError{Kind: KindTransientServer, Provider: ProviderLocal, Message: "500"}
	err := NewRetryExhausted(ProviderLocal, 4, cause)

	if err.Kind != KindRetryExhausted {
		t.Errorf("Kind = %q, want %q", err.Kind, KindRetryExhausted)
	}
	if !strings.Contains(err.Error(), "4 attempts") {
		t.Errorf("Error() = %q, want attempt count", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("exhausted error must wrap the last failure")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap must return the last failure")
	}
}

func TestSensitivityLevelOrdering(t *testing.T) {
	for i, lower := range AllSensitivityLevels {
		for j, higher := range AllSensitivityLevels {
			want := i >= j
			if got := lower.AtLeast(higher); got != want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", lower, higher, got, want)
			}
		}
	}

	if SensitivityPublic.PrivacyRisk() != 0 || SensitivityHighlyConfidential.PrivacyRisk() != 1 {
		t.Error("privacy risk endpoints must be 0 and 1")
	}
	if SensitivityInternal.PrivacyRisk() >= SensitivityConfidential.PrivacyRisk() {
		t.Error("privacy risk must rise with sensitivity")
	}
}

func TestProcessingRequestValidate(t *testing.T) {
	valid := &ProcessingRequest{ID: "r1", Text: "hello world", Task: TaskSummary}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	blank := &ProcessingRequest{ID: "r2", Text: "  \n\t ", Task: TaskSummary}
	if KindOf(blank.Validate()) != KindValidation {
		t.Error("blank text must fail validation")
	}

	badTask := &ProcessingRequest{ID: "r3", Text: "hello", Task: "juggling"}
	if KindOf(badTask.Validate()) != KindValidation {
		t.Error("unknown task must fail validation")
	}

	badPrefs := &ProcessingRequest{ID: "r4", Text: "hello", Task: TaskSummary,
		Preferences: &PreferenceWeights{Privacy: 1.5}}
	if KindOf(badPrefs.Validate()) != KindValidation {
		t.Error("out-of-range preference must fail validation")
	}
}

func TestParsers(t *testing.T) {
	if task, err := ParseTaskType("  Summary "); err != nil || task != TaskSummary {
		t.Errorf("ParseTaskType = %v, %v", task, err)
	}
	if _, err := ParseTaskType("juggling"); err == nil {
		t.Error("ParseTaskType must reject unknown tasks")
	}

	if mode, err := ParseProcessingMode("privacy-first"); err != nil || mode != ModePrivacyFirst {
		t.Errorf("ParseProcessingMode = %v, %v", mode, err)
	}
	if _, err := ParseProcessingMode("warp-speed"); err == nil {
		t.Error("ParseProcessingMode must reject unknown modes")
	}

	if id, err := ParseProviderID("local"); err != nil || id != ProviderLocal {
		t.Errorf("ParseProviderID = %v, %v", id, err)
	}
	if !ProviderCloudPrimary.IsCloud() || ProviderLocal.IsCloud() {
		t.Error("IsCloud must separate cloud providers from the local one")
	}
}
