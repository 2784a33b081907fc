package progress

import (
	"context"
	"time"
)

// Store ports. These interfaces are implemented by the infrastructure layer;
// the engine has no knowledge of the actual storage mechanism.

// EventStore persists accepted learning events. Events are append-only.
type EventStore interface {
	// Append stores one accepted event.
	Append(ctx context.Context, event LearningEvent) error

	// Remove deletes one event. Used only to undo an Append whose day
	// summary could not be written; removing a missing event is not an error.
	Remove(ctx context.Context, studentID, eventID string) error

	// ListByDay returns all events for a student on one date.
	ListByDay(ctx context.Context, studentID string, day time.Time) ([]LearningEvent, error)

	// ListByStudent returns all events for a student, oldest first.
	ListByStudent(ctx context.Context, studentID string) ([]LearningEvent, error)
}

// SummaryStore persists one DailySummary per (student, date).
type SummaryStore interface {
	// Upsert creates or overwrites the summary for (StudentID, Date).
	Upsert(ctx context.Context, summary DailySummary) error

	// Get returns a single summary or shared.ErrSummaryNotFound.
	Get(ctx context.Context, studentID string, day time.Time) (DailySummary, error)

	// ListByStudent returns all summaries for a student ordered by date ascending.
	ListByStudent(ctx context.Context, studentID string) ([]DailySummary, error)

	// ListValid returns valid-day summaries dated on or before until,
	// ordered by date descending.
	ListValid(ctx context.Context, studentID string, until time.Time) ([]DailySummary, error)

	// CountValid returns the all-time number of valid days.
	CountValid(ctx context.Context, studentID string) (int, error)

	// Count returns the number of summaries of any validity.
	Count(ctx context.Context, studentID string) (int, error)
}

// RewardStore persists reward state per student.
type RewardStore interface {
	// GetOrCreate returns the stored state, creating an empty one on first access.
	GetOrCreate(ctx context.Context, studentID string) (RewardState, error)

	// Save merges state into the stored record: badges are unioned in
	// append order, so concurrent settles can never remove a badge.
	// PuzzlePieces is overwritten.
	Save(ctx context.Context, state RewardState) error
}

// StudentStore persists the student registry.
type StudentStore interface {
	// Ensure creates the student if missing. Reports whether it was created.
	Ensure(ctx context.Context, studentID string) (bool, error)

	// Get returns the student or shared.ErrStudentNotFound.
	Get(ctx context.Context, studentID string) (Student, error)
}

// DayLocker serializes recomputation of one (student, day).
type DayLocker interface {
	// Lock blocks until the day is held or ctx is done. The returned
	// function releases it.
	Lock(ctx context.Context, studentID string, day time.Time) (unlock func(), err error)
}
