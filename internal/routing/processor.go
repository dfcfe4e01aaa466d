package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/metrics"
	"github.com/noteflux/ai-router/internal/notify"
	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/ratelimit"
	"github.com/noteflux/ai-router/internal/types"
)

// SensitivityClassifier is the assessment half of the pre-decision analysis.
type SensitivityClassifier interface {
	Assess(text string) (*types.SensitivityAssessment, error)
}

// Processor runs the full pipeline for one request: sensitivity and length
// analysis (independent, run concurrently), the decision engine, the
// rate-limited retry-wrapped provider call, and the metrics/notification
// bookkeeping afterwards. One request-scoped goroutine pair per call; no
// long-lived workers beyond the rate limiter's serialization point.
type Processor struct {
	classifier SensitivityClassifier
	engine     *Engine
	executor   *ratelimit.Executor
	backends   map[types.ProviderID]providers.Provider
	aggregator *metrics.Aggregator
	hub        *notify.Hub
	settings   func() types.ProcessingModeSettings
	rules      func() *RuleSet
	logger     *logrus.Logger
}

// NewProcessor wires the pipeline. The settings and rules functions return
// the current operator settings and compiled content rules; both may change
// between requests when the operator updates them.
func NewProcessor(
	classifier SensitivityClassifier,
	engine *Engine,
	executor *ratelimit.Executor,
	backends map[types.ProviderID]providers.Provider,
	aggregator *metrics.Aggregator,
	hub *notify.Hub,
	settings func() types.ProcessingModeSettings,
	rules func() *RuleSet,
	logger *logrus.Logger,
) *Processor {
	return &Processor{
		classifier: classifier,
		engine:     engine,
		executor:   executor,
		backends:   backends,
		aggregator: aggregator,
		hub:        hub,
		settings:   settings,
		rules:      rules,
		logger:     logger,
	}
}

// Decide runs the analysis and decision steps without invoking a provider.
func (p *Processor) Decide(ctx context.Context, req *types.ProcessingRequest) (*types.ProcessingDecision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	settings := p.settings()

	assessment, length := p.analyze(req.Text)
	decision := p.engine.Decide(req, settings.PreferredMode, assessment, length, p.rules(), settings.PrivacyThreshold)

	if decision.SelectedMode != settings.PreferredMode {
		p.hub.Publish(types.Event{
			Type:      types.EventModeSwitch,
			Severity:  types.SeverityInfo,
			Message:   fmt.Sprintf("mode switched from %s to %s", settings.PreferredMode, decision.SelectedMode),
			Provider:  decision.SelectedProvider,
			RequestID: req.ID,
		})
	}

	return decision, nil
}

// Process runs the full pipeline and returns the decision together with the
// provider result.
func (p *Processor) Process(ctx context.Context, req *types.ProcessingRequest) (*types.ProcessingDecision, *types.ProviderResult, error) {
	decision, err := p.Decide(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	result, fellBack, err := p.invoke(ctx, decision, req)
	elapsed := time.Since(start)

	p.aggregator.Record(decision, elapsed, err == nil, fellBack)

	if err != nil {
		p.hub.Publish(types.Event{
			Type:      types.EventError,
			Severity:  types.SeverityError,
			Message:   err.Error(),
			Provider:  decision.SelectedProvider,
			RequestID: req.ID,
		})
		return decision, nil, err
	}

	return decision, result, nil
}

// invoke calls the selected provider through the retry controller, trying
// the decision's fallback provider once when the primary is exhausted. The
// bool reports whether the fallback was actually invoked.
func (p *Processor) invoke(ctx context.Context, decision *types.ProcessingDecision, req *types.ProcessingRequest) (*types.ProviderResult, bool, error) {
	primary, ok := p.backends[decision.SelectedProvider]
	if !ok {
		return nil, false, &types.ProviderError{
			Kind:     types.KindProviderUnavailable,
			Provider: decision.SelectedProvider,
			Message:  "selected provider is not registered",
		}
	}

	result, err := p.executor.Execute(ctx, primary.ID(), func(ctx context.Context) (*types.ProviderResult, error) {
		return primary.Invoke(ctx, req.Task, req.Text)
	})
	if err == nil {
		return result, false, nil
	}

	fallbackID := decision.FallbackProvider
	if fallbackID == "" || ctx.Err() != nil {
		return nil, false, err
	}
	fallback, ok := p.backends[fallbackID]
	if !ok {
		return nil, false, err
	}

	// Compliance holds for the fallback too: a non-compliant fallback is
	// skipped, not silently used.
	if !IsCompliant(fallbackID, decision.Assessment.Level) {
		p.logger.WithFields(logrus.Fields{
			"fallback": fallbackID,
			"level":    decision.Assessment.Level,
		}).Warn("Fallback provider skipped, not compliant for content level")
		return nil, false, err
	}

	p.logger.WithError(err).WithFields(logrus.Fields{
		"primary":  decision.SelectedProvider,
		"fallback": fallbackID,
	}).Warn("Primary provider failed, activating fallback")

	p.hub.Publish(types.Event{
		Type:      types.EventFallback,
		Severity:  types.SeverityWarning,
		Message:   fmt.Sprintf("provider %s failed, falling back to %s", decision.SelectedProvider, fallbackID),
		Provider:  fallbackID,
		RequestID: req.ID,
	})

	result, err = p.executor.Execute(ctx, fallback.ID(), func(ctx context.Context) (*types.ProviderResult, error) {
		return fallback.Invoke(ctx, req.Task, req.Text)
	})
	return result, true, err
}

// ProcessBatch runs the pipeline for each request with shared rate limiting,
// continuing past individual failures.
type BatchOutcome struct {
	Request  *types.ProcessingRequest
	Decision *types.ProcessingDecision
	Result   *types.ProviderResult
	Err      error
}

// ProcessBatch applies partial-failure semantics: every request gets an
// outcome, and one bad request never aborts the rest.
func (p *Processor) ProcessBatch(ctx context.Context, reqs []*types.ProcessingRequest) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(reqs))
	for i, req := range reqs {
		decision, result, err := p.Process(ctx, req)
		outcomes[i] = BatchOutcome{Request: req, Decision: decision, Result: result, Err: err}
		if ctx.Err() != nil {
			for j := i + 1; j < len(reqs); j++ {
				outcomes[j] = BatchOutcome{Request: reqs[j], Err: ctx.Err()}
			}
			break
		}
	}
	return outcomes
}

// analyze runs the sensitivity and length analyses concurrently and joins.
// A classifier failure is fail-safe: the content is assumed
// highly-confidential rather than letting unassessed text reach a cloud
// backend.
func (p *Processor) analyze(text string) (*types.SensitivityAssessment, LengthInfo) {
	type assessResult struct {
		assessment *types.SensitivityAssessment
		err        error
	}

	assessCh := make(chan assessResult, 1)
	lengthCh := make(chan LengthInfo, 1)

	go func() {
		assessment, err := p.classifier.Assess(text)
		assessCh <- assessResult{assessment, err}
	}()
	go func() {
		lengthCh <- AnalyzeLength(text)
	}()

	ar := <-assessCh
	length := <-lengthCh

	if ar.err != nil {
		p.logger.WithError(ar.err).Error("Sensitivity analysis failed, assuming highly confidential")
		return &types.SensitivityAssessment{
			Level:      types.SensitivityHighlyConfidential,
			Confidence: 0.5,
			Reasons:    []string{"sensitivity analysis failed, assuming highest sensitivity: " + ar.err.Error()},
		}, length
	}
	return ar.assessment, length
}
