package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/types"
)

// costWarningThreshold is the running average cost-per-request above which a
// cost recommendation is emitted.
const costWarningThreshold = 0.05

// UsageMetrics is a point-in-time snapshot of the accumulated counters.
type UsageMetrics struct {
	TotalRequests       int64          `json:"total_requests"`
	CloudRequests       int64          `json:"cloud_requests"`
	LocalRequests       int64          `json:"local_requests"`
	ModeSwitches        int64          `json:"mode_switches"`
	FallbackActivations int64          `json:"fallback_activations"`
	Failures            int64          `json:"failures"`
	AvgResponseTime     time.Duration  `json:"avg_response_time"`
	AvgCost             float64        `json:"avg_cost"`
	ModeUsage           map[types.ProcessingMode]int64 `json:"mode_usage"`
}

// Aggregator records every decision's outcome and derives usage statistics
// and advisory recommendations. It is an explicitly-constructed, injected
// service: all mutation goes through Record/Reset under the mutex, readers
// get copies.
type Aggregator struct {
	logger *logrus.Logger

	mu       sync.Mutex
	metrics  UsageMetrics
	lastMode types.ProcessingMode
}

// NewAggregator creates an empty aggregator.
func NewAggregator(logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		logger:  logger,
		metrics: UsageMetrics{ModeUsage: make(map[types.ProcessingMode]int64)},
	}
}

// Record updates counters and running averages for one completed decision.
// fallbackActivated reports whether the fallback provider was actually
// invoked, not merely present in the decision's chain: every cloud-winning
// hybrid decision carries a chain entry, activating it is the exception.
// Averages use an incremental mean update so memory stays bounded.
func (a *Aggregator) Record(decision *types.ProcessingDecision, actualDuration time.Duration, success, fallbackActivated bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := &a.metrics
	m.TotalRequests++
	if decision.SelectedProvider.IsCloud() {
		m.CloudRequests++
	} else {
		m.LocalRequests++
	}
	if fallbackActivated {
		m.FallbackActivations++
	}
	if !success {
		m.Failures++
	}
	if a.lastMode != "" && a.lastMode != decision.SelectedMode {
		m.ModeSwitches++
	}
	a.lastMode = decision.SelectedMode
	m.ModeUsage[decision.SelectedMode]++

	n := float64(m.TotalRequests)
	m.AvgResponseTime += time.Duration((float64(actualDuration) - float64(m.AvgResponseTime)) / n)
	m.AvgCost += (decision.EstimatedCost - m.AvgCost) / n

	a.logger.WithFields(logrus.Fields{
		"provider":    decision.SelectedProvider,
		"mode":        decision.SelectedMode,
		"duration_ms": actualDuration.Milliseconds(),
		"success":     success,
	}).Debug("Decision outcome recorded")
}

// Snapshot returns a copy of the current metrics. A slightly stale read is
// acceptable for the engine's preference weighting.
func (a *Aggregator) Snapshot() UsageMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := a.metrics
	snapshot.ModeUsage = make(map[types.ProcessingMode]int64, len(a.metrics.ModeUsage))
	for mode, n := range a.metrics.ModeUsage {
		snapshot.ModeUsage[mode] = n
	}
	return snapshot
}

// Reset clears all counters. Explicit operator action only.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.metrics = UsageMetrics{ModeUsage: make(map[types.ProcessingMode]int64)}
	a.lastMode = ""
	a.logger.Info("Usage metrics reset")
}

// Recommendations derives human-readable optimization suggestions from the
// accumulated usage. Advisory only: it never forces a decision.
func (a *Aggregator) Recommendations() []string {
	snapshot := a.Snapshot()

	var recs []string
	if snapshot.TotalRequests == 0 {
		return recs
	}

	var dominantMode types.ProcessingMode
	var dominantCount int64
	for mode, n := range snapshot.ModeUsage {
		if n > dominantCount {
			dominantMode, dominantCount = mode, n
		}
	}
	if dominantMode != "" && dominantMode != types.ModeHybrid &&
		float64(dominantCount)/float64(snapshot.TotalRequests) > 0.7 {
		recs = append(recs, fmt.Sprintf(
			"most-used mode is %s (%d of %d requests); hybrid mode might balance cost, speed and privacy better",
			dominantMode, dominantCount, snapshot.TotalRequests))
	}

	if snapshot.AvgCost > costWarningThreshold {
		recs = append(recs, fmt.Sprintf(
			"average cost per request is $%.4f, above the $%.2f threshold; consider cost-optimized mode or the local provider",
			snapshot.AvgCost, costWarningThreshold))
	}

	if snapshot.FallbackActivations > 0 &&
		float64(snapshot.FallbackActivations)/float64(snapshot.TotalRequests) > 0.3 {
		recs = append(recs, fmt.Sprintf(
			"fallback was activated on %d of %d requests; the preferred mode may not match typical content",
			snapshot.FallbackActivations, snapshot.TotalRequests))
	}

	return recs
}
