package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func eventsWith(scores, times []int) []LearningEvent {
	out := make([]LearningEvent, len(scores))
	for i := range scores {
		e := validEvent()
		e.Score = scores[i]
		e.TimeSpent = times[i]
		out[i] = e
	}
	return out
}

func TestEstimate_InsufficientData(t *testing.T) {
	est := NewConfidenceEstimator()

	got := est.Estimate(History{
		Events:       eventsWith([]int{90, 90, 90, 90}, []int{20, 20, 20, 20}),
		SummaryCount: 10,
	})

	assert.Equal(t, ConfidenceLow, got.Level)
	assert.Equal(t, ReasonInsufficientData, got.Reason)
}

func TestEstimate_Levels(t *testing.T) {
	steady := []int{70, 75, 80, 72, 78}
	volatile := []int{0, 100, 0, 100, 50}
	even := []int{20, 20, 20, 20, 20}
	spiky := []int{10, 10, 10, 10, 90}

	tests := []struct {
		name      string
		scores    []int
		times     []int
		summaries int
		level     ConfidenceLevel
		reason    string
	}{
		{"consistent", steady, even, 5, ConfidenceHigh, ReasonConsistent},
		{"volatile scores", volatile, even, 5, ConfidenceMedium, ReasonScoreVolatility},
		{"time spike", steady, spiky, 5, ConfidenceMedium, ReasonTimeSpike},
		{"sparse history", steady, even, 2, ConfidenceMedium, ReasonSparseHistory},
		{"two anomalies", volatile, spiky, 5, ConfidenceLow, ReasonScoreVolatility + " " + ReasonTimeSpike},
		{"three anomalies", volatile, spiky, 1, ConfidenceLow,
			ReasonScoreVolatility + " " + ReasonTimeSpike + " " + ReasonSparseHistory},
	}

	est := NewConfidenceEstimator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := est.Estimate(History{Events: eventsWith(tt.scores, tt.times), SummaryCount: tt.summaries})
			assert.Equal(t, tt.level, got.Level)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestTimeSpike_NeedsAbsoluteMinimum(t *testing.T) {
	// 25 is more than 3x the mean of 7 but not above 30 minutes.
	h := History{Events: eventsWith([]int{50, 50, 50, 50, 50}, []int{1, 1, 1, 7, 25})}
	assert.False(t, timeSpike(h))

	h = History{Events: eventsWith([]int{50, 50, 50, 50, 50}, []int{1, 1, 1, 1, 31})}
	assert.True(t, timeSpike(h))
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, populationStdDev(nil))
	assert.Equal(t, 0.0, populationStdDev([]float64{42, 42}))
	assert.InDelta(t, 2.0, populationStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestEstimate_CustomChecks(t *testing.T) {
	always := AnomalyCheck{Name: "always", Reason: "Flagged.", Detect: func(History) bool { return true }}
	est := NewConfidenceEstimator(always)

	got := est.Estimate(History{Events: eventsWith([]int{1, 1, 1, 1, 1}, []int{5, 5, 5, 5, 5})})

	assert.Equal(t, ConfidenceMedium, got.Level)
	assert.Equal(t, "Flagged.", got.Reason)
}
