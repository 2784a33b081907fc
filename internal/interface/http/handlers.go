package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/alem-hub/progress-hub/internal/application/command"
	"github.com/alem-hub/progress-hub/internal/application/query"
	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Progress Hub API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":      "/health",
			"events":      "POST /api/v1/events",
			"tests":       "POST /api/v1/tests/submit",
			"student":     "/api/v1/students/{id}",
			"streak":      "/api/v1/students/{id}/streak",
			"confidence":  "/api/v1/students/{id}/confidence",
			"rewards":     "/api/v1/students/{id}/rewards",
			"dashboard":   "/api/v1/students/{id}/dashboard",
			"topic_stats": "/api/v1/students/{id}/analysis",
		},
	}

	writeJSON(w, r, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics reports server and event bus counters as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}
	if s.deps.Metrics != nil {
		for k, v := range s.deps.Metrics() {
			metrics[k] = v
		}
	}

	writeJSON(w, r, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// eventRequest is the wire form of a learning event. Numeric fields are
// pointers so a missing value is reported instead of read as zero. Field
// order matches progress.LearningEvent, so the first violation reported is
// the same whichever rule it breaks.
type eventRequest struct {
	StudentID     string `json:"student_id" validate:"notblank"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	ActivityType  string `json:"activity_type" validate:"oneof=quiz practice revision test"`
	Topic         string `json:"topic" validate:"notblank"`
	Score         *int   `json:"score" validate:"required,min=0,max=100"`
	TimeSpent     *int   `json:"time_spent" validate:"required,min=1"`
	AttemptNumber *int   `json:"attempt_number" validate:"required,min=1"`
}

// toEvent validates the whole request and converts it into a domain event.
func (req eventRequest) toEvent(v *progress.Validator) (progress.LearningEvent, error) {
	if err := v.Check(req); err != nil {
		return progress.LearningEvent{}, err
	}

	day, err := timeutil.ParseDate(req.Date)
	if err != nil {
		return progress.LearningEvent{}, &progress.ValidationError{Field: "date", Reason: "date must be formatted as YYYY-MM-DD"}
	}

	return progress.LearningEvent{
		StudentID: req.StudentID,
		Date:      day,
		Kind:      progress.ActivityKind(req.ActivityType),
		Topic:     req.Topic,
		Score:     *req.Score,
		TimeSpent: *req.TimeSpent,
		Attempt:   *req.AttemptNumber,
	}, nil
}

// ingestResponse is returned with 202 Accepted.
type ingestResponse struct {
	Status         string                 `json:"status"`
	EventID        string                 `json:"event_id"`
	StudentCreated bool                   `json:"student_created"`
	Summary        *progress.DailySummary `json:"summary"`
}

// handleIngestEvent handles POST /api/v1/events
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	s.ingest(w, r, command.SourceAPI)
}

// handleSubmitTest handles POST /api/v1/tests/submit
func (s *Server) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	s.ingest(w, r, command.SourceTestSubmission)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, source command.Source) {
	if s.deps.IngestEventHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Ingestion is not configured")
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if source == command.SourceTestSubmission {
		req.ActivityType = string(progress.KindTest)
	}

	event, err := req.toEvent(s.validator)
	if err != nil {
		s.writeError(w, r, "ingest", err)
		return
	}

	result, err := s.deps.IngestEventHandler.Handle(r.Context(), command.IngestEventCommand{
		Event:         event,
		Source:        source,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, "ingest", err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, ingestResponse{
		Status:         "accepted",
		EventID:        result.EventID,
		StudentCreated: result.StudentCreated,
		Summary:        result.Summary,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Student handler not configured")
		return
	}

	result, err := s.deps.GetStudentHandler.Handle(r.Context(), query.GetStudentQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "get_student", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetStreak handles GET /api/v1/students/{id}/streak
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStreakHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Streak handler not configured")
		return
	}

	result, err := s.deps.GetStreakHandler.Handle(r.Context(), query.GetStreakQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "get_streak", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetConfidence handles GET /api/v1/students/{id}/confidence
func (s *Server) handleGetConfidence(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetConfidenceHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Confidence handler not configured")
		return
	}

	result, err := s.deps.GetConfidenceHandler.Handle(r.Context(), query.GetConfidenceQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "get_confidence", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetRewards handles GET /api/v1/students/{id}/rewards
func (s *Server) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	if s.deps.SettleRewardsHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Rewards handler not configured")
		return
	}

	result, err := s.deps.SettleRewardsHandler.Handle(r.Context(), query.SettleRewardsQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "get_rewards", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetDashboard handles GET /api/v1/students/{id}/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDashboardHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Dashboard handler not configured")
		return
	}

	result, err := s.deps.GetDashboardHandler.Handle(r.Context(), query.GetDashboardQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "get_dashboard", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetAnalysis handles GET /api/v1/students/{id}/analysis
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTopicAnalysisHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Analysis handler not configured")
		return
	}

	result, err := s.deps.GetTopicAnalysisHandler.Handle(r.Context(), query.GetTopicAnalysisQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "get_analysis", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps a domain error onto a status code and the error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := logger.FromContext(r.Context()).With(logger.Operation(op))

	if ve, ok := progress.AsValidationError(err); ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, &APIError{
			Code:    "validation_error",
			Message: ve.Reason,
			Field:   ve.Field,
		})
		return
	}

	switch {
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case shared.IsRetryable(err):
		log.Warn("request failed with retryable error", logger.Err(err))
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, r, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable, retry shortly")
	case shared.IsComputation(err):
		log.Error("computation error", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "computation_error", "Failed to compute progress")
	default:
		log.Error("request failed", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// decodeJSON decodes a single JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.New("content type must be application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("malformed JSON body: " + err.Error())
	}
	return nil
}
