// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE DAY COMMAND
// Rebuilds one (student, day) summary from all of that day's events.
// Triggered by ingestion and by operator backfill, one day at a time.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeDayCommand identifies the day to rebuild.
type RecomputeDayCommand struct {
	StudentID     string
	Date          time.Time
	CorrelationID string
}

// Validate validates the command.
func (c RecomputeDayCommand) Validate() error {
	if strings.TrimSpace(c.StudentID) == "" {
		return errors.New("recompute_day: student_id is required")
	}
	if c.Date.IsZero() {
		return errors.New("recompute_day: date is required")
	}
	return nil
}

// RecomputeDayResult contains the stored summary, or nil when the day has no events.
type RecomputeDayResult struct {
	Summary    *progress.DailySummary
	EventCount int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeDayHandler handles the RecomputeDayCommand.
type RecomputeDayHandler struct {
	events    progress.EventStore
	summaries progress.SummaryStore
	locker    progress.DayLocker
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewRecomputeDayHandler creates a new RecomputeDayHandler.
func NewRecomputeDayHandler(
	events progress.EventStore,
	summaries progress.SummaryStore,
	locker progress.DayLocker,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RecomputeDayHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecomputeDayHandler{
		events:    events,
		summaries: summaries,
		locker:    locker,
		publisher: publisher,
		logger:    log.With(logger.Component("recompute_day")),
	}
}

// Handle executes the recompute command. The whole read-compute-write runs
// under the day lock so concurrent writers always see the complete event set.
func (h *RecomputeDayHandler) Handle(ctx context.Context, cmd RecomputeDayCommand) (*RecomputeDayResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("progress", "Recompute", shared.ErrInvalidInput, "invalid command", err)
	}
	day := timeutil.DateOf(cmd.Date)

	unlock, err := h.lock(ctx, cmd.StudentID, day)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return h.recomputeLocked(ctx, cmd.StudentID, day, cmd.CorrelationID)
}

func (h *RecomputeDayHandler) lock(ctx context.Context, studentID string, day time.Time) (func(), error) {
	unlock, err := h.locker.Lock(ctx, studentID, day)
	if err != nil {
		return nil, fmt.Errorf("recompute_day: lock: %w", err)
	}
	return unlock, nil
}

// recomputeLocked rebuilds the summary. The caller holds the day lock.
func (h *RecomputeDayHandler) recomputeLocked(ctx context.Context, studentID string, day time.Time, correlationID string) (*RecomputeDayResult, error) {
	cmd := RecomputeDayCommand{StudentID: studentID, Date: day, CorrelationID: correlationID}

	events, err := h.events.ListByDay(ctx, cmd.StudentID, day)
	if err != nil {
		return nil, fmt.Errorf("recompute_day: list events: %w", err)
	}
	if len(events) == 0 {
		h.logger.Debug("no events for day, nothing to summarize",
			logger.StudentID(cmd.StudentID), logger.Day(day))
		return &RecomputeDayResult{}, nil
	}

	summary, err := progress.Recompute(cmd.StudentID, day, events)
	if err != nil {
		h.logger.Error("summary invariant violated",
			logger.StudentID(cmd.StudentID), logger.Day(day), logger.Err(err))
		return nil, err
	}

	if err := h.summaries.Upsert(ctx, summary); err != nil {
		return nil, fmt.Errorf("recompute_day: upsert summary: %w", err)
	}

	event := shared.NewSummaryRecomputedEvent(cmd.StudentID, day, summary.ProgressScore, summary.IsValidDay)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish summary event", logger.Err(err))
	}

	h.logger.Debug("summary recomputed",
		logger.StudentID(cmd.StudentID),
		logger.Day(day),
		logger.Int("events", len(events)),
		logger.Float64("progress_score", summary.ProgressScore),
		logger.Bool("valid", summary.IsValidDay),
	)

	return &RecomputeDayResult{Summary: &summary, EventCount: len(events)}, nil
}
