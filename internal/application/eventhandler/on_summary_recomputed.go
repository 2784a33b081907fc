// Package eventhandler contains reactions to domain events.
package eventhandler

import (
	"context"
	"time"

	"github.com/alem-hub/progress-hub/internal/application/query"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON SUMMARY RECOMPUTED
// A newly valid day can extend the streak, so rewards are settled right away
// instead of waiting for the next rewards read. Invalid days never grant
// anything and are skipped.
// ══════════════════════════════════════════════════════════════════════════════

// OnSummaryRecomputedHandler settles rewards after a valid day is recomputed.
type OnSummaryRecomputedHandler struct {
	rewards *query.SettleRewardsHandler
	timeout time.Duration
	logger  *logger.Logger
}

// NewOnSummaryRecomputedHandler creates a new OnSummaryRecomputedHandler.
func NewOnSummaryRecomputedHandler(rewards *query.SettleRewardsHandler, log *logger.Logger) *OnSummaryRecomputedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnSummaryRecomputedHandler{
		rewards: rewards,
		timeout: 10 * time.Second,
		logger:  log.With(logger.Component("on_summary_recomputed")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnSummaryRecomputedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.SummaryRecomputedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if !e.IsValidDay {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	state, err := h.rewards.Handle(ctx, query.SettleRewardsQuery{StudentID: e.StudentID})
	if err != nil {
		return err
	}

	h.logger.Debug("rewards settled",
		logger.StudentID(e.StudentID),
		logger.Day(e.Date),
		logger.Int("puzzle_pieces", state.PuzzlePieces),
		logger.Int("badges", len(state.Badges)),
	)
	return nil
}
