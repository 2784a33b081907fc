package progress

import (
	"sort"
	"time"

	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// StreakState is the derived consecutive-activity view. It is never persisted.
type StreakState struct {
	CurrentStreak    int        `json:"current_streak"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	IsActive         bool       `json:"is_active"`
}

// CalculateStreak computes the strict streak as of today.
//
// Only valid summaries dated on or before today count. If the latest valid day
// is older than yesterday the streak is zero, though the date is still reported.
// Otherwise consecutive days are counted backwards until the first gap.
func CalculateStreak(summaries []DailySummary, today time.Time) StreakState {
	today = timeutil.DateOf(today)

	days := make([]time.Time, 0, len(summaries))
	for _, s := range summaries {
		d := timeutil.DateOf(s.Date)
		if s.IsValidDay && !d.After(today) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return StreakState{}
	}

	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	last := days[0]
	gap := timeutil.DaysBetween(last, today)
	if gap > 1 {
		return StreakState{LastActivityDate: &last}
	}

	streak := 1
	current := last
	for _, d := range days[1:] {
		if d.Equal(current) {
			// Stores keep one summary per day; tolerate duplicates anyway.
			continue
		}
		if !timeutil.IsConsecutiveDay(d, current) {
			break
		}
		streak++
		current = d
	}

	return StreakState{
		CurrentStreak:    streak,
		LastActivityDate: &last,
		IsActive:         gap == 0,
	}
}
