package progress

import (
	"math"
	"strings"
)

// ConfidenceLevel is a three-level trust label for derived signals.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "Low"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceHigh   ConfidenceLevel = "High"
)

// Confidence thresholds.
const (
	MinEventsForConfidence = 5
	MaxScoreStdDev         = 25.0
	TimeSpikeFactor        = 3.0
	TimeSpikeMinMinutes    = 30
	MinDailyHistory        = 3
)

// Reasons reported with a confidence level.
const (
	ReasonInsufficientData = "Insufficient data points (less than 5 events)."
	ReasonConsistent       = "Consistent data patterns observed."
	ReasonScoreVolatility  = "High score volatility detected."
	ReasonTimeSpike        = "Unusual spike in time spent detected."
	ReasonSparseHistory    = "Not enough daily history."
)

// ConfidenceResult is the derived confidence view. It is never persisted.
type ConfidenceResult struct {
	Level  ConfidenceLevel `json:"level"`
	Reason string          `json:"reason"`
}

// History is the read snapshot an AnomalyCheck inspects.
type History struct {
	Events       []LearningEvent
	SummaryCount int
}

// AnomalyCheck detects one independent anomaly. Each hit costs one confidence point.
type AnomalyCheck struct {
	Name   string
	Reason string
	Detect func(h History) bool
}

// DefaultAnomalyChecks returns the standard checks in reporting order.
func DefaultAnomalyChecks() []AnomalyCheck {
	return []AnomalyCheck{
		{Name: "score_volatility", Reason: ReasonScoreVolatility, Detect: scoreVolatile},
		{Name: "time_spike", Reason: ReasonTimeSpike, Detect: timeSpike},
		{Name: "sparse_history", Reason: ReasonSparseHistory, Detect: sparseHistory},
	}
}

// ConfidenceEstimator classifies how far derived signals can be trusted.
type ConfidenceEstimator struct {
	checks []AnomalyCheck
}

// NewConfidenceEstimator creates an estimator. With no checks given it uses the defaults.
func NewConfidenceEstimator(checks ...AnomalyCheck) *ConfidenceEstimator {
	if len(checks) == 0 {
		checks = DefaultAnomalyChecks()
	}
	return &ConfidenceEstimator{checks: checks}
}

// Estimate starts at High and drops one level per detected anomaly.
func (c *ConfidenceEstimator) Estimate(h History) ConfidenceResult {
	if len(h.Events) < MinEventsForConfidence {
		return ConfidenceResult{Level: ConfidenceLow, Reason: ReasonInsufficientData}
	}

	score := 3
	var reasons []string
	for _, check := range c.checks {
		if check.Detect(h) {
			score--
			reasons = append(reasons, check.Reason)
		}
	}

	switch {
	case score >= 3:
		return ConfidenceResult{Level: ConfidenceHigh, Reason: ReasonConsistent}
	case score == 2:
		return ConfidenceResult{Level: ConfidenceMedium, Reason: strings.Join(reasons, " ")}
	default:
		return ConfidenceResult{Level: ConfidenceLow, Reason: strings.Join(reasons, " ")}
	}
}

func scoreVolatile(h History) bool {
	scores := make([]float64, len(h.Events))
	for i, e := range h.Events {
		scores[i] = float64(e.Score)
	}
	return populationStdDev(scores) > MaxScoreStdDev
}

func timeSpike(h History) bool {
	if len(h.Events) == 0 {
		return false
	}
	total, peak := 0, 0
	for _, e := range h.Events {
		total += e.TimeSpent
		peak = max(peak, e.TimeSpent)
	}
	mean := float64(total) / float64(len(h.Events))
	return float64(peak) > mean*TimeSpikeFactor && peak > TimeSpikeMinMinutes
}

func sparseHistory(h History) bool {
	return h.SummaryCount < MinDailyHistory
}

func populationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / float64(len(xs)))
}
