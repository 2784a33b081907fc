// Package timeutil provides calendar-date utilities for Progress Hub.
// All dates are naive calendar dates in one implicit timezone (UTC is used
// as the carrier). A date value is always midnight UTC of that day.
package timeutil

import (
	"time"
)

// Layout constants.
const (
	FormatDate     = "2006-01-02"
	FormatDateTime = "2006-01-02 15:04:05"
)

// Zone is the single implicit timezone dates are expressed in.
var Zone = time.UTC

// Clock abstracts "now" so that streak computation can be pinned in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Date creates a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Zone)
}

// DateOf returns the calendar date of t, reading t's own year/month/day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Zone)
}

// Today returns the current calendar date according to the clock.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// AddDays shifts a date by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return DateOf(d).AddDate(0, 0, n)
}

// DaysBetween returns the signed number of whole days from `from` to `to`.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// IsSameDay checks if two times fall on the same calendar date.
func IsSameDay(t1, t2 time.Time) bool {
	return DateOf(t1).Equal(DateOf(t2))
}

// IsConsecutiveDay checks if next is exactly one day after prev.
func IsConsecutiveDay(prev, next time.Time) bool {
	return DaysBetween(prev, next) == 1
}

// FormatDateStr formats a date as YYYY-MM-DD.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(FormatDate, value, Zone)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
