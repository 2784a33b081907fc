package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// One composite read: daily progress, streak, settled rewards, confidence
// and the activity-kind distribution. Identical concurrent requests for the
// same student share one computation.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery identifies the student.
type GetDashboardQuery struct {
	StudentID string
}

// Validate validates the query.
func (q GetDashboardQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// DashboardDTO is the composite dashboard view.
type DashboardDTO struct {
	Student              progress.Student          `json:"student"`
	DailyProgress        []progress.DailySummary   `json:"daily_progress"`
	Streak               progress.StreakState      `json:"streak"`
	Confidence           progress.ConfidenceResult `json:"confidence"`
	ActivityDistribution []progress.KindCount      `json:"activity_distribution"`
	Reward               progress.RewardState      `json:"reward"`
	GeneratedAt          time.Time                 `json:"generated_at"`
}

// GetDashboardHandler handles the GetDashboardQuery.
type GetDashboardHandler struct {
	students  progress.StudentStore
	events    progress.EventStore
	summaries progress.SummaryStore
	rewards   *SettleRewardsHandler
	estimator *progress.ConfidenceEstimator
	clock     timeutil.Clock
	logger    *logger.Logger

	group singleflight.Group
}

// NewGetDashboardHandler creates a new GetDashboardHandler.
func NewGetDashboardHandler(
	students progress.StudentStore,
	events progress.EventStore,
	summaries progress.SummaryStore,
	rewards *SettleRewardsHandler,
	estimator *progress.ConfidenceEstimator,
	clock timeutil.Clock,
	log *logger.Logger,
) *GetDashboardHandler {
	if estimator == nil {
		estimator = progress.NewConfidenceEstimator()
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetDashboardHandler{
		students:  students,
		events:    events,
		summaries: summaries,
		rewards:   rewards,
		estimator: estimator,
		clock:     clock,
		logger:    log.With(logger.Component("dashboard")),
	}
}

// Handle executes the query. Unknown students yield shared.ErrStudentNotFound.
func (h *GetDashboardHandler) Handle(ctx context.Context, q GetDashboardQuery) (*DashboardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, invalidQuery("GetDashboard", err)
	}

	v, err, shared := h.group.Do(q.StudentID, func() (interface{}, error) {
		return h.build(ctx, q.StudentID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		h.logger.Debug("dashboard shared with concurrent caller", logger.StudentID(q.StudentID))
	}
	return v.(*DashboardDTO), nil
}

func (h *GetDashboardHandler) build(ctx context.Context, studentID string) (*DashboardDTO, error) {
	start := time.Now()

	var (
		student   progress.Student
		events    []progress.LearningEvent
		summaries []progress.DailySummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		student, err = h.students.Get(gctx, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		if events, err = h.events.ListByStudent(gctx, studentID); err != nil {
			return fmt.Errorf("get_dashboard: list events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if summaries, err = h.summaries.ListByStudent(gctx, studentID); err != nil {
			return fmt.Errorf("get_dashboard: list summaries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	streak := progress.CalculateStreak(summaries, timeutil.Today(h.clock))

	reward, err := h.rewards.Handle(ctx, SettleRewardsQuery{
		StudentID: studentID,
		Streak:    &streak.CurrentStreak,
	})
	if err != nil {
		return nil, err
	}

	if summaries == nil {
		summaries = []progress.DailySummary{}
	}

	dto := &DashboardDTO{
		Student:              student,
		DailyProgress:        summaries,
		Streak:               streak,
		Confidence:           h.estimator.Estimate(progress.History{Events: events, SummaryCount: len(summaries)}),
		ActivityDistribution: progress.ActivityDistribution(events),
		Reward:               reward,
		GeneratedAt:          h.clock.Now().UTC(),
	}

	h.logger.Debug("dashboard built",
		logger.StudentID(studentID),
		logger.Int("events", len(events)),
		logger.Int("days", len(summaries)),
		logger.Latency(time.Since(start)),
	)
	return dto, nil
}
