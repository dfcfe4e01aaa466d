package routing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/noteflux/ai-router/internal/metrics"
	"github.com/noteflux/ai-router/internal/notify"
	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/ratelimit"
	"github.com/noteflux/ai-router/internal/types"
)

// stubProvider is a scripted backend for pipeline tests.
type stubProvider struct {
	id      types.ProviderID
	err     error
	invoked int
}

func (s *stubProvider) ID() types.ProviderID { return s.id }

func (s *stubProvider) Invoke(ctx context.Context, task types.TaskType, text string) (*types.ProviderResult, error) {
	s.invoked++
	if s.err != nil {
		return nil, s.err
	}
	return &types.ProviderResult{Text: "ok", TokensUsed: 10, Provider: s.id}, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) error { return s.err }

// stubClassifier returns a fixed verdict or error.
type stubClassifier struct {
	assessment *types.SensitivityAssessment
	err        error
}

func (s *stubClassifier) Assess(text string) (*types.SensitivityAssessment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.assessment, nil
}

type pipelineFixture struct {
	processor  *Processor
	aggregator *metrics.Aggregator
	hub        *notify.Hub
	local      *stubProvider
	primary    *stubProvider
	secondary  *stubProvider
}

func newPipeline(t *testing.T, classifier SensitivityClassifier) *pipelineFixture {
	t.Helper()
	logger := testLogger()

	local := &stubProvider{id: types.ProviderLocal}
	primary := &stubProvider{id: types.ProviderCloudPrimary}
	secondary := &stubProvider{id: types.ProviderCloudSecondary}

	limiter := ratelimit.NewLimiter(&ratelimit.Config{RequestsPerSecond: 1000, RequestsPerMinute: 100000}, logger)
	executor := ratelimit.NewExecutor(limiter, &ratelimit.RetryConfig{MaxRetries: 0, BaseDelay: 1}, logger)
	aggregator := metrics.NewAggregator(logger)
	hub := notify.NewHub(func() bool { return true }, logger)
	engine := NewEngine(DefaultPolicyWeights(), allAvailableProbe(), aggregator.Snapshot, logger)

	rules := emptyRules(t)
	processor := NewProcessor(
		classifier,
		engine,
		executor,
		map[types.ProviderID]providers.Provider{
			types.ProviderLocal:          local,
			types.ProviderCloudPrimary:   primary,
			types.ProviderCloudSecondary: secondary,
		},
		aggregator,
		hub,
		types.DefaultProcessingModeSettings,
		func() *RuleSet { return rules },
		logger,
	)

	return &pipelineFixture{
		processor:  processor,
		aggregator: aggregator,
		hub:        hub,
		local:      local,
		primary:    primary,
		secondary:  secondary,
	}
}

func TestProcessor_ProcessShortPublicText(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})

	decision, result, err := f.processor.Process(context.Background(), testRequest("A short note."))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if decision.SelectedProvider != types.ProviderLocal {
		t.Errorf("Expected local for short public text in hybrid mode, got %s", decision.SelectedProvider)
	}
	if result.Provider != types.ProviderLocal {
		t.Errorf("Result should come from the selected provider, got %s", result.Provider)
	}

	snapshot := f.aggregator.Snapshot()
	if snapshot.TotalRequests != 1 || snapshot.LocalRequests != 1 {
		t.Errorf("Expected 1 local request recorded, got %+v", snapshot)
	}
}

func TestProcessor_FallbackOnPrimaryFailure(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})

	// Long public text routes to cloud-secondary with cloud-primary fallback.
	f.secondary.err = &types.ProviderError{
		Kind:     types.KindAuth,
		Provider: types.ProviderCloudSecondary,
		Message:  "invalid api key",
	}

	req := testRequest(strings.Repeat("A plain filler sentence. ", 300))
	decision, result, err := f.processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed despite fallback: %v", err)
	}

	if decision.SelectedProvider != types.ProviderCloudSecondary {
		t.Fatalf("Expected cloud-secondary selection, got %s", decision.SelectedProvider)
	}
	if result.Provider != types.ProviderCloudPrimary {
		t.Errorf("Expected fallback result from cloud-primary, got %s", result.Provider)
	}
	if f.primary.invoked != 1 {
		t.Errorf("Expected exactly one fallback invocation, got %d", f.primary.invoked)
	}
	if got := f.aggregator.Snapshot().FallbackActivations; got != 1 {
		t.Errorf("Expected 1 recorded fallback activation, got %d", got)
	}

	var sawFallbackEvent bool
	for _, event := range f.hub.Recent() {
		if event.Type == types.EventFallback {
			sawFallbackEvent = true
		}
	}
	if !sawFallbackEvent {
		t.Error("Expected a fallback event in the hub")
	}
}

func TestProcessor_HealthyPrimaryRecordsNoFallback(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})

	// Cloud-winning decisions carry a fallback chain entry; with a healthy
	// primary the entry stays unused and must not show up in the metrics.
	req := testRequest(strings.Repeat("A plain filler sentence. ", 300))
	for i := 0; i < 10; i++ {
		decision, _, err := f.processor.Process(context.Background(), req)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if decision.FallbackProvider == "" {
			t.Fatal("Test setup: cloud-winning hybrid decision should carry a fallback chain entry")
		}
	}

	snapshot := f.aggregator.Snapshot()
	if snapshot.FallbackActivations != 0 {
		t.Errorf("Expected 0 fallback activations for healthy primaries, got %d", snapshot.FallbackActivations)
	}
	for _, rec := range f.aggregator.Recommendations() {
		if strings.Contains(rec, "fallback") {
			t.Errorf("Unexpected fallback recommendation: %q", rec)
		}
	}
}

func TestProcessor_NonCompliantFallbackSkipped(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})

	f.secondary.err = &types.ProviderError{Kind: types.KindAuth, Provider: types.ProviderCloudSecondary, Message: "denied"}
	f.primary.err = nil

	decision := &types.ProcessingDecision{
		RequestID:        "crafted",
		SelectedProvider: types.ProviderCloudSecondary,
		FallbackProvider: types.ProviderCloudPrimary,
		Assessment:       types.SensitivityAssessment{Level: types.SensitivityConfidential},
	}
	req := testRequest("crafted confidential text")

	_, fellBack, err := f.processor.invoke(context.Background(), decision, req)
	if err == nil {
		t.Fatal("Expected the primary error to propagate")
	}
	if fellBack {
		t.Error("A skipped fallback must not count as activated")
	}
	if f.primary.invoked != 0 {
		t.Errorf("Non-compliant fallback must not be invoked, got %d invocations", f.primary.invoked)
	}
}

func TestProcessor_ClassifierFailureIsFailSafe(t *testing.T) {
	f := newPipeline(t, &stubClassifier{err: errors.New("pattern table corrupted")})

	decision, err := f.processor.Decide(context.Background(), testRequest("anything at all."))
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision.Assessment.Level != types.SensitivityHighlyConfidential {
		t.Errorf("Classifier failure must assume the highest sensitivity, got %s", decision.Assessment.Level)
	}
	if decision.SelectedProvider != types.ProviderLocal {
		t.Errorf("Fail-safe content must route local, got %s", decision.SelectedProvider)
	}
}

func TestProcessor_ValidationError(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})

	_, err := f.processor.Decide(context.Background(), &types.ProcessingRequest{Text: "   ", Task: types.TaskSummary})
	if err == nil {
		t.Fatal("Expected a validation error for blank text")
	}
	if types.KindOf(err) != types.KindValidation {
		t.Errorf("Expected validation kind, got %s", types.KindOf(err))
	}

	_, err = f.processor.Decide(context.Background(), &types.ProcessingRequest{Text: "fine", Task: types.TaskType("juggle")})
	if err == nil {
		t.Fatal("Expected a validation error for an unknown task")
	}
}

func TestProcessor_ModeSwitchEvent(t *testing.T) {
	assessment := &types.SensitivityAssessment{Level: types.SensitivityConfidential, Confidence: 0.8}
	f := newPipeline(t, &stubClassifier{assessment: assessment})

	// Preferred mode is hybrid; the privacy override re-tags to privacy-first.
	decision, err := f.processor.Decide(context.Background(), testRequest("a confidential memo."))
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.SelectedMode == types.ModeHybrid {
		t.Fatal("Expected a mode re-tag for confidential content")
	}

	var sawSwitch bool
	for _, event := range f.hub.Recent() {
		if event.Type == types.EventModeSwitch {
			sawSwitch = true
		}
	}
	if !sawSwitch {
		t.Error("Expected a mode-switch event in the hub")
	}
}

func TestProcessor_ProcessBatchPartialFailure(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})
	f.local.err = &types.ProviderError{Kind: types.KindNetwork, Provider: types.ProviderLocal, Message: "connection refused"}

	reqs := []*types.ProcessingRequest{
		testRequest("first short note."), // routes local, fails
		{Text: "", Task: types.TaskSummary}, // validation failure
	}

	outcomes := f.processor.ProcessBatch(context.Background(), reqs)
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err == nil {
		t.Error("Expected the first request to fail at the provider")
	}
	if outcomes[1].Err == nil {
		t.Error("Expected the second request to fail validation")
	}
	if types.KindOf(outcomes[1].Err) != types.KindValidation {
		t.Errorf("Expected validation kind, got %s", types.KindOf(outcomes[1].Err))
	}
}

func TestProcessor_ErrorRecordedAsFailure(t *testing.T) {
	f := newPipeline(t, &stubClassifier{assessment: publicAssessment()})
	f.local.err = &types.ProviderError{Kind: types.KindNetwork, Provider: types.ProviderLocal, Message: "down"}

	_, _, err := f.processor.Process(context.Background(), testRequest("short note."))
	if err == nil {
		t.Fatal("Expected the provider failure to propagate")
	}

	snapshot := f.aggregator.Snapshot()
	if snapshot.Failures != 1 {
		t.Errorf("Expected 1 recorded failure, got %d", snapshot.Failures)
	}

	var sawError bool
	for _, event := range f.hub.Recent() {
		if event.Type == types.EventError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("Expected an error event in the hub")
	}
}
