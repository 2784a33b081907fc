package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
)

// GetConfidenceQuery identifies the student.
type GetConfidenceQuery struct {
	StudentID string
}

// Validate validates the query.
func (q GetConfidenceQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// GetConfidenceHandler rates how far a student's derived signals can be trusted.
type GetConfidenceHandler struct {
	events    progress.EventStore
	summaries progress.SummaryStore
	estimator *progress.ConfidenceEstimator
}

// NewGetConfidenceHandler creates a new GetConfidenceHandler.
func NewGetConfidenceHandler(
	events progress.EventStore,
	summaries progress.SummaryStore,
	estimator *progress.ConfidenceEstimator,
) *GetConfidenceHandler {
	if estimator == nil {
		estimator = progress.NewConfidenceEstimator()
	}
	return &GetConfidenceHandler{events: events, summaries: summaries, estimator: estimator}
}

// Handle executes the query.
func (h *GetConfidenceHandler) Handle(ctx context.Context, q GetConfidenceQuery) (progress.ConfidenceResult, error) {
	if err := q.Validate(); err != nil {
		return progress.ConfidenceResult{}, invalidQuery("GetConfidence", err)
	}

	events, err := h.events.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return progress.ConfidenceResult{}, fmt.Errorf("get_confidence: list events: %w", err)
	}
	count, err := h.summaries.Count(ctx, q.StudentID)
	if err != nil {
		return progress.ConfidenceResult{}, fmt.Errorf("get_confidence: count summaries: %w", err)
	}

	return h.estimator.Estimate(progress.History{Events: events, SummaryCount: count}), nil
}
