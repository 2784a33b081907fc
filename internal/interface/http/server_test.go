package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-hub/internal/application/command"
	"github.com/alem-hub/progress-hub/internal/application/query"
	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-hub/internal/interface/http/handlers"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

var today = timeutil.Date(2026, 10, 16)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func newTestServer(t *testing.T, health handlers.HealthChecker) *Server {
	t.Helper()

	clock := timeutil.FixedClock(today.Add(18 * time.Hour))
	store := memory.NewStore()

	recompute := command.NewRecomputeDayHandler(store.Events(), store.Summaries(), memory.NewDayLocker(), nil, nil)
	ingest := command.NewIngestEventHandler(progress.MustNewValidator(), store.Students(), store.Events(),
		recompute, nil, nil, command.IngestEventHandlerConfig{Clock: clock})
	streak := query.NewGetStreakHandler(store.Summaries(), clock)
	rewards := query.NewSettleRewardsHandler(store.Students(), store.Summaries(), store.Rewards(), streak, nil, nil)

	cfg := DefaultConfig()
	return NewServer(cfg, Dependencies{
		IngestEventHandler:      ingest,
		GetStudentHandler:       query.NewGetStudentHandler(store.Students()),
		GetStreakHandler:        streak,
		GetConfidenceHandler:    query.NewGetConfidenceHandler(store.Events(), store.Summaries(), nil),
		SettleRewardsHandler:    rewards,
		GetDashboardHandler:     query.NewGetDashboardHandler(store.Students(), store.Events(), store.Summaries(), rewards, nil, clock, nil),
		GetTopicAnalysisHandler: query.NewGetTopicAnalysisHandler(store.Events()),
		Logger:                  logger.Nop(),
		HealthChecker:           health,
		Metrics: func() map[string]interface{} {
			return map[string]interface{}{"events_published": 0}
		},
	})
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func eventBody(student string, day time.Time, score, timeSpent int) map[string]interface{} {
	return map[string]interface{}{
		"student_id":     student,
		"date":           timeutil.FormatDateStr(day),
		"activity_type":  "practice",
		"topic":          "Algebra",
		"score":          score,
		"time_spent":     timeSpent,
		"attempt_number": 1,
	}
}

func TestIngestEvent_Accepted(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/events", eventBody("s-1", today, 80, 30))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), env.RequestID)

	var got struct {
		Status         string                `json:"status"`
		StudentCreated bool                  `json:"student_created"`
		Summary        progress.DailySummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "accepted", got.Status)
	assert.True(t, got.StudentCreated)
	assert.Equal(t, 30, got.Summary.TotalTime)
	assert.InDelta(t, 62.0, got.Summary.ProgressScore, 1e-9)
	assert.True(t, got.Summary.IsValidDay)
}

func TestIngestEvent_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		field  string
	}{
		{"score above range", func(b map[string]interface{}) { b["score"] = 150 }, "score"},
		{"zero time spent", func(b map[string]interface{}) { b["time_spent"] = 0 }, "time_spent"},
		{"missing time spent", func(b map[string]interface{}) { delete(b, "time_spent") }, "time_spent"},
		{"missing attempt", func(b map[string]interface{}) { delete(b, "attempt_number") }, "attempt_number"},
		{"blank topic", func(b map[string]interface{}) { b["topic"] = "  " }, "topic"},
		{"unknown kind", func(b map[string]interface{}) { b["activity_type"] = "lecture" }, "activity_type"},
		{"bad date", func(b map[string]interface{}) { b["date"] = "16/10/2026" }, "date"},
		{"missing date", func(b map[string]interface{}) { delete(b, "date") }, "date"},
		{"blank student before missing score", func(b map[string]interface{}) {
			b["student_id"] = ""
			delete(b, "score")
		}, "student_id"},
		{"bad date before missing score", func(b map[string]interface{}) {
			b["date"] = "2026-13-01"
			delete(b, "score")
		}, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			body := eventBody("s-1", today, 80, 30)
			tt.mutate(body)

			rec, env := do(t, s, http.MethodPost, "/api/v1/events", body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "validation_error", env.Error.Code)
			assert.Equal(t, tt.field, env.Error.Field)

			// Nothing was stored, so the student is still unknown.
			rec, _ = do(t, s, http.MethodGet, "/api/v1/students/s-1", nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestIngestEvent_MalformedBody(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/events", `{"student_id": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

func TestSubmitTest_ForcesTestKind(t *testing.T) {
	s := newTestServer(t, nil)
	body := eventBody("s-1", today, 90, 20)
	body["activity_type"] = "quiz"

	rec, _ := do(t, s, http.MethodPost, "/api/v1/tests/submit", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, env := do(t, s, http.MethodGet, "/api/v1/students/s-1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dash query.DashboardDTO
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	require.Len(t, dash.ActivityDistribution, 1)
	assert.Equal(t, progress.KindTest, dash.ActivityDistribution[0].Kind)
}

func TestSubmitTest_ActivityTypeOptional(t *testing.T) {
	s := newTestServer(t, nil)
	body := eventBody("s-1", today, 70, 20)
	delete(body, "activity_type")

	rec, env := do(t, s, http.MethodPost, "/api/v1/tests/submit", body)
	require.Equal(t, http.StatusAccepted, rec.Code, string(env.Data))

	rec, _ = do(t, s, http.MethodPost, "/api/v1/events", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStudentViews(t *testing.T) {
	s := newTestServer(t, nil)
	for i := 0; i < 7; i++ {
		rec, _ := do(t, s, http.MethodPost, "/api/v1/events", eventBody("s-1", timeutil.AddDays(today, -i), 70, 30))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	t.Run("student", func(t *testing.T) {
		rec, env := do(t, s, http.MethodGet, "/api/v1/students/s-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var st progress.Student
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.Equal(t, "s-1", st.ID)
	})

	t.Run("streak", func(t *testing.T) {
		rec, env := do(t, s, http.MethodGet, "/api/v1/students/s-1/streak", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var st progress.StreakState
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.Equal(t, 7, st.CurrentStreak)
		assert.True(t, st.IsActive)
	})

	t.Run("rewards", func(t *testing.T) {
		rec, env := do(t, s, http.MethodGet, "/api/v1/students/s-1/rewards", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var rw progress.RewardState
		require.NoError(t, json.Unmarshal(env.Data, &rw))
		assert.Equal(t, []progress.Badge{progress.BadgeSevenDaySurvivor}, rw.Badges)
		assert.Equal(t, 1, rw.PuzzlePieces)
	})

	t.Run("confidence", func(t *testing.T) {
		rec, env := do(t, s, http.MethodGet, "/api/v1/students/s-1/confidence", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var c progress.ConfidenceResult
		require.NoError(t, json.Unmarshal(env.Data, &c))
		assert.Equal(t, progress.ConfidenceHigh, c.Level)
	})

	t.Run("analysis", func(t *testing.T) {
		rec, env := do(t, s, http.MethodGet, "/api/v1/students/s-1/analysis", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var a progress.TopicAnalysis
		require.NoError(t, json.Unmarshal(env.Data, &a))
		require.Len(t, a.Topics, 1)
		assert.Equal(t, 7, a.Topics[0].Events)
	})
}

func TestUnknownStudent(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"", "/rewards", "/dashboard"} {
		rec, env := do(t, s, http.MethodGet, "/api/v1/students/ghost"+path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "not_found", env.Error.Code, path)
	}

	// Derived views that do not require a registered student stay empty.
	rec, env := do(t, s, http.MethodGet, "/api/v1/students/ghost/streak", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st progress.StreakState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Zero(t, st.CurrentStreak)
	assert.Nil(t, st.LastActivityDate)
}

func TestWriteError_Mapping(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid query", shared.WrapError("query", "GetStreak", shared.ErrInvalidInput, "invalid query", errors.New("student id is required")), http.StatusBadRequest, "invalid_request"},
		{"not found", fmt.Errorf("load: %w", shared.ErrStudentNotFound), http.StatusNotFound, "not_found"},
		{"lock contended", shared.ErrDayLockContended, http.StatusServiceUnavailable, "unavailable"},
		{"computation", shared.ErrEmptyDay, http.StatusInternalServerError, "computation_error"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			s.writeError(rec, req, "test", tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	s := newTestServer(t, checker)

	rec, env := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "Some checks failed: redis", status.Message)

	rec, _ = do(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Contains(t, m, "events_published")
	assert.Contains(t, m, "uptime_seconds")
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t, nil)
	big := bytes.Repeat([]byte("a"), int(DefaultConfig().MaxBodyBytes)+1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
