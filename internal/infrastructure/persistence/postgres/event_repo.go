package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const eventColumns = `id, student_id, date, activity_type, topic, score, time_spent, attempt_number, recorded_at`

// EventRepository implements progress.EventStore for PostgreSQL.
type EventRepository struct {
	db Querier
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db Querier) *EventRepository {
	return &EventRepository{db: db}
}

// Append stores one accepted event.
func (r *EventRepository) Append(ctx context.Context, e progress.LearningEvent) error {
	query := `
		INSERT INTO learning_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.StudentID,
		timeutil.DateOf(e.Date),
		string(e.Kind),
		e.Topic,
		e.Score,
		e.TimeSpent,
		e.Attempt,
		e.RecordedAt,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.WrapError("progress", "AppendEvent", shared.ErrAlreadyExists, "event already recorded", err)
		case IsForeignKeyViolation(err):
			return shared.WrapError("progress", "AppendEvent", shared.ErrNotFound, "student not found", err)
		}
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// Remove deletes one event.
func (r *EventRepository) Remove(ctx context.Context, studentID, eventID string) error {
	query := `DELETE FROM learning_events WHERE student_id = $1 AND id = $2`

	if _, err := r.db.Exec(ctx, query, studentID, eventID); err != nil {
		return fmt.Errorf("failed to remove event: %w", err)
	}
	return nil
}

// ListByDay returns all events for a student on one date.
func (r *EventRepository) ListByDay(ctx context.Context, studentID string, day time.Time) ([]progress.LearningEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM learning_events
		WHERE student_id = $1 AND date = $2
		ORDER BY recorded_at, id
	`

	rows, err := r.db.Query(ctx, query, studentID, timeutil.DateOf(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list events by day: %w", err)
	}
	return scanEvents(rows)
}

// ListByStudent returns all events for a student, oldest first.
func (r *EventRepository) ListByStudent(ctx context.Context, studentID string) ([]progress.LearningEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM learning_events
		WHERE student_id = $1
		ORDER BY date, recorded_at, id
	`

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]progress.LearningEvent, error) {
	defer rows.Close()

	var events []progress.LearningEvent
	for rows.Next() {
		var (
			e    progress.LearningEvent
			kind string
		)
		if err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.Date,
			&kind,
			&e.Topic,
			&e.Score,
			&e.TimeSpent,
			&e.Attempt,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = progress.ActivityKind(kind)
		e.Date = timeutil.DateOf(e.Date)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
