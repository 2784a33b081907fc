package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
)

// GetTopicAnalysisQuery identifies the student.
type GetTopicAnalysisQuery struct {
	StudentID string
}

// Validate validates the query.
func (q GetTopicAnalysisQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// GetTopicAnalysisHandler reports strong and weak topics.
type GetTopicAnalysisHandler struct {
	events progress.EventStore
}

// NewGetTopicAnalysisHandler creates a new GetTopicAnalysisHandler.
func NewGetTopicAnalysisHandler(events progress.EventStore) *GetTopicAnalysisHandler {
	return &GetTopicAnalysisHandler{events: events}
}

// Handle executes the query.
func (h *GetTopicAnalysisHandler) Handle(ctx context.Context, q GetTopicAnalysisQuery) (progress.TopicAnalysis, error) {
	if err := q.Validate(); err != nil {
		return progress.TopicAnalysis{}, invalidQuery("GetTopicAnalysis", err)
	}

	events, err := h.events.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return progress.TopicAnalysis{}, fmt.Errorf("get_topic_analysis: list events: %w", err)
	}
	return progress.AnalyzeTopics(events), nil
}
