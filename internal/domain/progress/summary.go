package progress

import (
	"math"
	"time"

	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// Progress score weights.
const (
	// TimeCapMinutes caps the time contribution: minutes past one hour earn nothing.
	TimeCapMinutes = 60

	// ScoreWeight is the maximum contribution of the average score.
	ScoreWeight = 40.0

	// ValidDayThreshold is the minimum progress score for a streak-eligible day.
	ValidDayThreshold = 15.0
)

// DailySummary is the aggregate of one student's events on one calendar day.
// It is unique per (StudentID, Date) and always recomputed in full.
type DailySummary struct {
	StudentID     string    `json:"student_id"`
	Date          time.Time `json:"date"`
	TotalTime     int       `json:"total_time"`
	AvgScore      float64   `json:"avg_score"`
	ProgressScore float64   `json:"progress_score"`
	IsValidDay    bool      `json:"is_valid_day"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SameValues reports whether two summaries carry identical derived values.
func (s DailySummary) SameValues(other DailySummary) bool {
	return s.StudentID == other.StudentID &&
		s.Date.Equal(other.Date) &&
		s.TotalTime == other.TotalTime &&
		s.AvgScore == other.AvgScore &&
		s.ProgressScore == other.ProgressScore &&
		s.IsValidDay == other.IsValidDay
}

// ProgressScore blends consistency (time, up to 60) and mastery (score, up to 40)
// and rounds to one decimal place.
func ProgressScore(totalTime int, avgScore float64) float64 {
	return roundTenth(rawProgress(totalTime, avgScore))
}

func rawProgress(totalTime int, avgScore float64) float64 {
	timeContribution := float64(min(totalTime, TimeCapMinutes))
	scoreContribution := avgScore / 100 * ScoreWeight
	return timeContribution + scoreContribution
}

// IsValidProgress reports whether a progress score makes a day streak-eligible.
func IsValidProgress(score float64) bool {
	return score >= ValidDayThreshold
}

// Recompute derives the summary for one (student, day) from all of that day's events.
// It returns shared.ErrEmptyDay for an empty set: no activity means no summary.
func Recompute(studentID string, day time.Time, events []LearningEvent) (DailySummary, error) {
	if len(events) == 0 {
		return DailySummary{}, shared.ErrEmptyDay
	}

	day = timeutil.DateOf(day)
	totalTime := 0
	totalScore := 0
	for _, e := range events {
		if e.StudentID != studentID || !timeutil.IsSameDay(e.Date, day) {
			return DailySummary{}, shared.ErrMixedDayEvents
		}
		totalTime += e.TimeSpent
		totalScore += e.Score
	}

	avgScore := float64(totalScore) / float64(len(events))
	raw := rawProgress(totalTime, avgScore)

	// Validity uses the unrounded score; only the stored value is rounded.
	return DailySummary{
		StudentID:     studentID,
		Date:          day,
		TotalTime:     totalTime,
		AvgScore:      avgScore,
		ProgressScore: roundTenth(raw),
		IsValidDay:    IsValidProgress(raw),
	}, nil
}

func roundTenth(x float64) float64 {
	return math.Round(x*10) / 10
}
