package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

var streakToday = timeutil.Date(2026, 10, 16)

// validDays builds valid summaries offset (in days) from streakToday.
func validDays(offsets ...int) []DailySummary {
	out := make([]DailySummary, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, DailySummary{
			StudentID:     "s-1",
			Date:          timeutil.AddDays(streakToday, -off),
			ProgressScore: 50,
			IsValidDay:    true,
		})
	}
	return out
}

func TestCalculateStreak_NoHistory(t *testing.T) {
	got := CalculateStreak(nil, streakToday)

	assert.Equal(t, 0, got.CurrentStreak)
	assert.Nil(t, got.LastActivityDate)
	assert.False(t, got.IsActive)
}

func TestCalculateStreak_ThreeConsecutiveDaysEndingToday(t *testing.T) {
	got := CalculateStreak(validDays(0, 1, 2), streakToday)

	assert.Equal(t, 3, got.CurrentStreak)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.LastActivityDate)
	assert.Equal(t, streakToday, *got.LastActivityDate)
}

func TestCalculateStreak_GapBreaksChain(t *testing.T) {
	got := CalculateStreak(validDays(0, 3), streakToday)

	assert.Equal(t, 1, got.CurrentStreak)
	assert.True(t, got.IsActive)
}

func TestCalculateStreak_MissingYesterdayIgnoresOlderDays(t *testing.T) {
	got := CalculateStreak(validDays(0, 2, 3, 4), streakToday)

	assert.Equal(t, 1, got.CurrentStreak)
}

func TestCalculateStreak_StrictNoGrace(t *testing.T) {
	got := CalculateStreak(validDays(2, 3, 4), streakToday)

	assert.Equal(t, 0, got.CurrentStreak)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.LastActivityDate)
	assert.Equal(t, timeutil.AddDays(streakToday, -2), *got.LastActivityDate)
}

func TestCalculateStreak_EndingYesterdayIsNotActive(t *testing.T) {
	got := CalculateStreak(validDays(1, 2), streakToday)

	assert.Equal(t, 2, got.CurrentStreak)
	assert.False(t, got.IsActive)
}

func TestCalculateStreak_SkipsInvalidAndFutureDays(t *testing.T) {
	summaries := validDays(1, 2)
	summaries = append(summaries,
		DailySummary{Date: streakToday, ProgressScore: 10, IsValidDay: false},
		DailySummary{Date: timeutil.AddDays(streakToday, 1), ProgressScore: 90, IsValidDay: true},
	)

	got := CalculateStreak(summaries, streakToday)

	assert.Equal(t, 2, got.CurrentStreak)
	assert.False(t, got.IsActive)
	assert.Equal(t, timeutil.AddDays(streakToday, -1), *got.LastActivityDate)
}

func TestCalculateStreak_InvalidDayInsideRunBreaksIt(t *testing.T) {
	summaries := validDays(0, 2)
	summaries = append(summaries, DailySummary{Date: timeutil.AddDays(streakToday, -1), IsValidDay: false})

	got := CalculateStreak(summaries, streakToday)

	assert.Equal(t, 1, got.CurrentStreak)
}

func TestCalculateStreak_OrderIndependentAndTimeOfDayAgnostic(t *testing.T) {
	summaries := validDays(3, 0, 2, 1)
	at := streakToday.Add(23*time.Hour + 59*time.Minute)

	got := CalculateStreak(summaries, at)

	assert.Equal(t, 4, got.CurrentStreak)
	assert.True(t, got.IsActive)
}

func TestCalculateStreak_LongRun(t *testing.T) {
	offsets := make([]int, 45)
	for i := range offsets {
		offsets[i] = i
	}

	got := CalculateStreak(validDays(offsets...), streakToday)

	assert.Equal(t, 45, got.CurrentStreak)
}
