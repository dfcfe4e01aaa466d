package routing

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/metrics"
	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/types"
)

// PolicyWeights is the tunable score table for the hybrid branch. The
// defaults encode that cloud backends are faster and higher-quality while
// the local runtime is cheaper and more private.
type PolicyWeights struct {
	Speed   float64 `yaml:"speed"`
	Quality float64 `yaml:"quality"`
	Cost    float64 `yaml:"cost"`

	// LengthSuitable/LengthUnsuitable weight the length factor depending on
	// whether the content fits local processing.
	LengthSuitable   float64 `yaml:"length_suitable"`
	LengthUnsuitable float64 `yaml:"length_unsuitable"`

	// LocalFitHigh/LocalFitLow score the local-suitability factor itself.
	LocalFitHigh float64 `yaml:"local_fit_high"`
	LocalFitLow  float64 `yaml:"local_fit_low"`
}

// DefaultPolicyWeights returns the frozen default score table.
func DefaultPolicyWeights() PolicyWeights {
	return PolicyWeights{
		Speed:            0.8,
		Quality:          0.9,
		Cost:             0.3,
		LengthSuitable:   0.8,
		LengthUnsuitable: 0.2,
		LocalFitHigh:     0.9,
		LocalFitLow:      0.1,
	}
}

// Engine is the core policy: it combines the sensitivity assessment,
// length analysis, availability, content rules and the compliance matrix
// into a single ProcessingDecision. Decide is referentially transparent
// given its inputs; the usage snapshot informs preference weighting only,
// never correctness.
type Engine struct {
	weights PolicyWeights
	probe   providers.AvailabilityProbe
	usage   func() metrics.UsageMetrics
	logger  *logrus.Logger
}

// NewEngine creates a decision engine. The usage function may be nil when no
// aggregator feedback is wired in.
func NewEngine(weights PolicyWeights, probe providers.AvailabilityProbe, usage func() metrics.UsageMetrics, logger *logrus.Logger) *Engine {
	if weights == (PolicyWeights{}) {
		weights = DefaultPolicyWeights()
	}
	return &Engine{
		weights: weights,
		probe:   probe,
		usage:   usage,
		logger:  logger,
	}
}

// Decide emits the processing decision for one request. It never fails for
// business-logic reasons: an unsatisfiable compliance requirement degrades
// to selecting the local provider and reporting PrivacyCompliant = false,
// leaving the refusal decision with the caller.
func (e *Engine) Decide(req *types.ProcessingRequest, preferredMode types.ProcessingMode, assessment *types.SensitivityAssessment, length LengthInfo, rules *RuleSet, privacyThreshold float64) *types.ProcessingDecision {
	decision := &types.ProcessingDecision{
		RequestID:    req.ID,
		SelectedMode: preferredMode,
		Assessment:   *assessment,
		Timestamp:    time.Now(),
	}

	switch preferredMode {
	case types.ModeCloudOnly:
		e.decideCloudOnly(decision)
	case types.ModeLocalOnly:
		e.decideLocalOnly(decision, length)
	case types.ModeCostOptimized:
		e.decideCostOptimized(decision)
	case types.ModePrivacyFirst:
		e.decidePrivacyFirst(decision, assessment, privacyThreshold)
	default:
		e.decideHybrid(decision, req, assessment, length)
	}

	e.applyContentRules(decision, req.Text, assessment.Level, rules)

	// The privacy override runs last and is unconditional: sensitive content
	// re-tags the decision even when local already won on score.
	if assessment.Level.PrivacyRisk() > privacyThreshold {
		decision.SelectedProvider = types.ProviderLocal
		decision.SelectedMode = types.ModePrivacyFirst
		decision.Confidence = 0.9
		decision.FallbackProvider = ""
		decision.Reasoning = append(decision.Reasoning, "highly sensitive data forces local processing")
	}

	decision.EstimatedCost = EstimateCost(decision.SelectedProvider, req.Task)
	decision.EstimatedTime = EstimateTime(decision.SelectedProvider, req.Task)

	decision.PrivacyCompliant = IsCompliant(decision.SelectedProvider, assessment.Level)
	if decision.SelectedProvider == types.ProviderLocal && !e.probe.IsAvailable(types.ProviderLocal) {
		// Local was required but is not usable. Still select it and report
		// the non-compliance rather than silently falling back to cloud.
		decision.PrivacyCompliant = false
		decision.Reasoning = append(decision.Reasoning, "local provider unavailable; decision reported as non-compliant")
	}

	e.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"provider":   decision.SelectedProvider,
		"mode":       decision.SelectedMode,
		"level":      assessment.Level,
		"confidence": decision.Confidence,
		"compliant":  decision.PrivacyCompliant,
	}).Info("Processing decision made")

	return decision
}

func (e *Engine) decideCloudOnly(decision *types.ProcessingDecision) {
	decision.Reasoning = append(decision.Reasoning, "cloud mode: always use cloud provider")
	if cloud, ok := e.bestCloud(); ok {
		decision.SelectedProvider = cloud
		decision.Confidence = 0.9
		return
	}
	decision.SelectedProvider = types.ProviderLocal
	decision.FallbackProvider = types.ProviderLocal
	decision.Confidence = 0.5
	decision.Reasoning = append(decision.Reasoning, "no cloud provider available, degrading to local")
}

func (e *Engine) decideLocalOnly(decision *types.ProcessingDecision, length LengthInfo) {
	if length.SuitableForLocal {
		decision.SelectedProvider = types.ProviderLocal
		decision.Confidence = 0.9
		decision.Reasoning = append(decision.Reasoning, "local mode: content suitable for local processing")
		return
	}

	// Degrade gracefully instead of refusing oversized content.
	decision.Reasoning = append(decision.Reasoning, fmt.Sprintf(
		"local mode: content too long or complex for local processing (%d chars, complexity %.2f), falling back to cloud",
		length.Characters, length.Complexity))
	if cloud, ok := e.bestCloud(); ok {
		decision.SelectedProvider = cloud
		decision.FallbackProvider = types.ProviderLocal
		decision.Confidence = 0.7
		return
	}
	decision.SelectedProvider = types.ProviderLocal
	decision.Confidence = 0.4
	decision.Reasoning = append(decision.Reasoning, "no cloud provider available, keeping local despite length")
}

func (e *Engine) decideCostOptimized(decision *types.ProcessingDecision) {
	// AllProviders is ordered cheapest-first: local < cloud-secondary <
	// cloud-primary.
	for _, p := range types.AllProviders {
		if e.probe.IsAvailable(p) {
			decision.SelectedProvider = p
			decision.Confidence = 0.85
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("cost mode: %s is the cheapest available provider", p))
			return
		}
	}
	decision.SelectedProvider = types.ProviderLocal
	decision.Confidence = 0.4
	decision.Reasoning = append(decision.Reasoning, "cost mode: no provider available, defaulting to local")
}

func (e *Engine) decidePrivacyFirst(decision *types.ProcessingDecision, assessment *types.SensitivityAssessment, privacyThreshold float64) {
	if assessment.Level.PrivacyRisk() > privacyThreshold {
		decision.SelectedProvider = types.ProviderLocal
		decision.SelectedMode = types.ModePrivacyFirst
		decision.Confidence = 0.9
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("privacy mode: sensitivity %s above threshold, processing locally", assessment.Level))
		return
	}

	decision.Reasoning = append(decision.Reasoning, "privacy mode: content below privacy threshold, cloud permitted")
	if cloud, ok := e.bestCloud(); ok {
		decision.SelectedProvider = cloud
		decision.Confidence = 0.8
		return
	}
	decision.SelectedProvider = types.ProviderLocal
	decision.Confidence = 0.6
	decision.Reasoning = append(decision.Reasoning, "no cloud provider available, using local")
}

func (e *Engine) decideHybrid(decision *types.ProcessingDecision, req *types.ProcessingRequest, assessment *types.SensitivityAssessment, length LengthInfo) {
	localScore, cloudScore := e.HybridScores(req, assessment, length)

	decision.Reasoning = append(decision.Reasoning,
		fmt.Sprintf("hybrid mode: local score %.2f vs cloud score %.2f", localScore, cloudScore))

	winning := cloudScore
	if localScore > cloudScore && e.probe.IsAvailable(types.ProviderLocal) {
		decision.SelectedProvider = types.ProviderLocal
		winning = localScore
		decision.Reasoning = append(decision.Reasoning, "hybrid mode: local provider wins")
	} else if cloud, ok := e.bestCloud(); ok {
		decision.SelectedProvider = cloud
		if next, ok := e.nextBestCloud(cloud); ok {
			decision.FallbackProvider = next
		} else {
			decision.FallbackProvider = types.ProviderLocal
		}
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("hybrid mode: cloud provider %s wins, fallback %s", cloud, decision.FallbackProvider))
	} else {
		decision.SelectedProvider = types.ProviderLocal
		winning = localScore
		decision.Reasoning = append(decision.Reasoning, "hybrid mode: no cloud provider available, using local")
	}

	if winning > 1.0 {
		winning = 1.0
	}
	decision.Confidence = winning
}

// HybridScores computes the weighted local and cloud scores for the hybrid
// branch. Exported so tests assert the comparison logic against the active
// weight table rather than frozen numeric outputs.
func (e *Engine) HybridScores(req *types.ProcessingRequest, assessment *types.SensitivityAssessment, length LengthInfo) (localScore, cloudScore float64) {
	w := e.effectiveWeights(req)

	lengthWeight := w.LengthUnsuitable
	localFit := w.LocalFitLow
	if length.SuitableForLocal {
		lengthWeight = w.LengthSuitable
		localFit = w.LocalFitHigh
	}

	localScore = (1-assessment.Level.PrivacyRisk())*1.0 + localFit*lengthWeight + w.Cost*1.0
	cloudScore = w.Speed*1.0 + w.Quality*1.0 + (1-lengthWeight)*0.8

	// The privacy preference boosts the local score in proportion to how
	// risky the content actually is; it has no pull on public text.
	if p := req.Preferences; p != nil && p.Privacy > 0 {
		localScore += p.Privacy * assessment.Level.PrivacyRisk()
	}
	return localScore, cloudScore
}

// effectiveWeights applies per-request user preferences and the usage
// feedback on top of the configured policy table.
func (e *Engine) effectiveWeights(req *types.ProcessingRequest) PolicyWeights {
	w := e.weights

	if p := req.Preferences; p != nil {
		if p.Speed > 0 {
			w.Speed = p.Speed
		}
		if p.Cost > 0 {
			w.Cost = p.Cost
		}
	}

	// Sustained high spend nudges the cost factor up. Advisory feedback
	// only; it cannot flip the compliance or privacy outcomes.
	if e.usage != nil {
		snapshot := e.usage()
		if snapshot.TotalRequests > 10 && snapshot.AvgCost > 0.05 && w.Cost < 1.0 {
			w.Cost += 0.1
		}
	}
	return w
}

// applyContentRules applies the highest-priority matching rule, unless the
// provider it implies would violate the compliance matrix for the assessed
// level.
func (e *Engine) applyContentRules(decision *types.ProcessingDecision, text string, level types.SensitivityLevel, rules *RuleSet) {
	rule, ok := rules.Match(text)
	if !ok {
		return
	}

	implied, ok := e.providerForMode(rule.RequiredMode)
	if !ok {
		decision.SelectedMode = rule.RequiredMode
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("content rule %q re-tagged mode to %s", rule.Name, rule.RequiredMode))
		return
	}

	if !IsCompliant(implied, level) {
		decision.Reasoning = append(decision.Reasoning, fmt.Sprintf(
			"content rule %q ignored: provider %s is not compliant for %s content",
			rule.Name, implied, level))
		return
	}

	decision.SelectedProvider = implied
	decision.SelectedMode = rule.RequiredMode
	decision.Reasoning = append(decision.Reasoning,
		fmt.Sprintf("content rule %q forced mode %s", rule.Name, rule.RequiredMode))
}

// providerForMode maps a rule's required mode onto the provider it implies.
// Hybrid implies no specific provider, so a hybrid rule only re-tags the mode.
func (e *Engine) providerForMode(mode types.ProcessingMode) (types.ProviderID, bool) {
	switch mode {
	case types.ModeLocalOnly, types.ModePrivacyFirst:
		return types.ProviderLocal, true
	case types.ModeCloudOnly:
		if cloud, ok := e.bestCloud(); ok {
			return cloud, true
		}
		return types.ProviderLocal, true
	case types.ModeCostOptimized:
		for _, p := range types.AllProviders {
			if e.probe.IsAvailable(p) {
				return p, true
			}
		}
		return types.ProviderLocal, true
	default:
		return "", false
	}
}

// bestCloud returns the preferred available cloud provider: cloud-secondary
// first for cost, then cloud-primary.
func (e *Engine) bestCloud() (types.ProviderID, bool) {
	if e.probe.IsAvailable(types.ProviderCloudSecondary) {
		return types.ProviderCloudSecondary, true
	}
	if e.probe.IsAvailable(types.ProviderCloudPrimary) {
		return types.ProviderCloudPrimary, true
	}
	return "", false
}

// nextBestCloud returns the other available cloud provider, if any.
func (e *Engine) nextBestCloud(selected types.ProviderID) (types.ProviderID, bool) {
	for _, p := range []types.ProviderID{types.ProviderCloudSecondary, types.ProviderCloudPrimary} {
		if p != selected && e.probe.IsAvailable(p) {
			return p, true
		}
	}
	return "", false
}
