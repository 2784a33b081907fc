// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// Derives the strict consecutive-day streak from persisted valid summaries.
// Nothing is cached: every call reads a fresh snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery identifies the student.
type GetStreakQuery struct {
	StudentID string
}

// Validate validates the query.
func (q GetStreakQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// GetStreakHandler handles the GetStreakQuery.
type GetStreakHandler struct {
	summaries progress.SummaryStore
	clock     timeutil.Clock
}

// NewGetStreakHandler creates a new GetStreakHandler.
func NewGetStreakHandler(summaries progress.SummaryStore, clock timeutil.Clock) *GetStreakHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &GetStreakHandler{summaries: summaries, clock: clock}
}

// Handle executes the query.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (progress.StreakState, error) {
	if err := q.Validate(); err != nil {
		return progress.StreakState{}, invalidQuery("GetStreak", err)
	}

	today := timeutil.Today(h.clock)
	valid, err := h.summaries.ListValid(ctx, q.StudentID, today)
	if err != nil {
		return progress.StreakState{}, fmt.Errorf("get_streak: list valid summaries: %w", err)
	}

	return progress.CalculateStreak(valid, today), nil
}
