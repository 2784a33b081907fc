package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTLE REWARDS
// Folds the current streak into persisted reward state. Reading rewards
// always settles first, so the returned state is never stale.
// ══════════════════════════════════════════════════════════════════════════════

// SettleRewardsQuery identifies the student. When Streak is nil the handler
// derives the current streak itself.
type SettleRewardsQuery struct {
	StudentID string
	Streak    *int
}

// Validate validates the query.
func (q SettleRewardsQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return errors.New("student_id is required")
	}
	if q.Streak != nil && *q.Streak < 0 {
		return errors.New("streak cannot be negative")
	}
	return nil
}

// SettleRewardsHandler handles the SettleRewardsQuery.
type SettleRewardsHandler struct {
	students  progress.StudentStore
	summaries progress.SummaryStore
	rewards   progress.RewardStore
	streak    *GetStreakHandler
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewSettleRewardsHandler creates a new SettleRewardsHandler.
func NewSettleRewardsHandler(
	students progress.StudentStore,
	summaries progress.SummaryStore,
	rewards progress.RewardStore,
	streak *GetStreakHandler,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SettleRewardsHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SettleRewardsHandler{
		students:  students,
		summaries: summaries,
		rewards:   rewards,
		streak:    streak,
		publisher: publisher,
		logger:    log.With(logger.Component("rewards")),
	}
}

// Handle settles and returns the reward state. Unknown students yield
// shared.ErrStudentNotFound.
func (h *SettleRewardsHandler) Handle(ctx context.Context, q SettleRewardsQuery) (progress.RewardState, error) {
	if err := q.Validate(); err != nil {
		return progress.RewardState{}, invalidQuery("SettleRewards", err)
	}

	if _, err := h.students.Get(ctx, q.StudentID); err != nil {
		return progress.RewardState{}, err
	}

	var current int
	if q.Streak != nil {
		current = *q.Streak
	} else {
		st, err := h.streak.Handle(ctx, GetStreakQuery{StudentID: q.StudentID})
		if err != nil {
			return progress.RewardState{}, err
		}
		current = st.CurrentStreak
	}

	state, err := h.rewards.GetOrCreate(ctx, q.StudentID)
	if err != nil {
		return progress.RewardState{}, fmt.Errorf("settle_rewards: load state: %w", err)
	}
	validDays, err := h.summaries.CountValid(ctx, q.StudentID)
	if err != nil {
		return progress.RewardState{}, fmt.Errorf("settle_rewards: count valid days: %w", err)
	}

	settlement := progress.Settle(state, current, validDays)
	if !settlement.Changed() {
		return settlement.State, nil
	}

	if err := h.rewards.Save(ctx, settlement.State); err != nil {
		return progress.RewardState{}, fmt.Errorf("settle_rewards: save state: %w", err)
	}

	for _, badge := range settlement.NewBadges {
		h.logger.Info("badge unlocked",
			logger.StudentID(q.StudentID), logger.String("badge", string(badge)), logger.Streak(current))
		h.publish(shared.NewBadgeUnlockedEvent(q.StudentID, string(badge), current))
	}
	if settlement.State.PuzzlePieces > settlement.PiecesBefore {
		h.publish(shared.NewPuzzlePiecesEarnedEvent(q.StudentID, settlement.PiecesBefore, settlement.State.PuzzlePieces))
	}

	return settlement.State, nil
}

func (h *SettleRewardsHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish reward event", logger.Err(err))
	}
}
