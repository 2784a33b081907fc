package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_DropsClockTime(t *testing.T) {
	in := time.Date(2026, 5, 17, 23, 59, 59, 0, time.FixedZone("X", 5*3600))
	assert.Equal(t, Date(2026, 5, 17), DateOf(in))
}

func TestDaysBetween(t *testing.T) {
	d := Date(2026, 2, 27)

	assert.Equal(t, 0, DaysBetween(d, d))
	assert.Equal(t, 2, DaysBetween(d, Date(2026, 3, 1)))
	assert.Equal(t, -2, DaysBetween(Date(2026, 3, 1), d))
	assert.True(t, IsConsecutiveDay(Date(2026, 2, 28), Date(2026, 3, 1)))
	assert.False(t, IsConsecutiveDay(d, Date(2026, 3, 1)))
}

func TestToday_UsesClock(t *testing.T) {
	clock := FixedClock(time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC))
	assert.Equal(t, Date(2026, 10, 16), Today(clock))
	assert.Equal(t, Date(2026, 10, 14), AddDays(Today(clock), -2))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-01-09")
	require.NoError(t, err)
	assert.Equal(t, Date(2026, 1, 9), got)
	assert.Equal(t, "2026-01-09", FormatDateStr(got))

	_, err = ParseDate("09/01/2026")
	assert.Error(t, err)
}
