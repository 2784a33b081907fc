package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST EVENT COMMAND
// Validates one learning event, stores it and rebuilds the summary of its day.
// ══════════════════════════════════════════════════════════════════════════════

// Source tells where an event came from.
type Source string

const (
	// SourceAPI is a regular event posted by a client.
	SourceAPI Source = "api"

	// SourceTestSubmission is a daily test result; its kind is always "test".
	SourceTestSubmission Source = "test_submission"

	// SourceSeed is demo data written by the operator CLI.
	SourceSeed Source = "seed"
)

// IngestEventCommand contains one raw event.
type IngestEventCommand struct {
	Event         progress.LearningEvent
	Source        Source
	CorrelationID string
}

// IngestEventResult contains the outcome of an accepted event.
type IngestEventResult struct {
	EventID        string
	StudentCreated bool
	Summary        *progress.DailySummary
	RecordedAt     time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// IngestEventHandler handles the IngestEventCommand.
type IngestEventHandler struct {
	validator *progress.Validator
	students  progress.StudentStore
	events    progress.EventStore
	recompute *RecomputeDayHandler
	publisher shared.EventPublisher
	clock     timeutil.Clock
	newID     func() string
	logger    *logger.Logger
}

// IngestEventHandlerConfig contains optional collaborators.
type IngestEventHandlerConfig struct {
	Clock timeutil.Clock
	NewID func() string
}

// NewIngestEventHandler creates a new IngestEventHandler.
func NewIngestEventHandler(
	validator *progress.Validator,
	students progress.StudentStore,
	events progress.EventStore,
	recompute *RecomputeDayHandler,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config IngestEventHandlerConfig,
) *IngestEventHandler {
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock()
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &IngestEventHandler{
		validator: validator,
		students:  students,
		events:    events,
		recompute: recompute,
		publisher: publisher,
		clock:     config.Clock,
		newID:     config.NewID,
		logger:    log.With(logger.Component("ingest")),
	}
}

// Handle executes the ingest command. A rejected event returns a
// *progress.ValidationError and leaves every store untouched.
func (h *IngestEventHandler) Handle(ctx context.Context, cmd IngestEventCommand) (*IngestEventResult, error) {
	event := cmd.Event
	if cmd.Source == SourceTestSubmission {
		event.Kind = progress.KindTest
	}

	if err := h.validator.Validate(event); err != nil {
		h.logger.Info("event rejected",
			logger.StudentID(event.StudentID),
			logger.String("source", string(cmd.Source)),
			logger.Err(err),
		)
		return nil, err
	}

	event.ID = h.newID()
	event.Date = timeutil.DateOf(event.Date)
	event.RecordedAt = h.clock.Now().UTC()

	created, err := h.students.Ensure(ctx, event.StudentID)
	if err != nil {
		return nil, fmt.Errorf("ingest_event: ensure student: %w", err)
	}
	if created {
		h.publish(shared.NewStudentRegisteredEvent(event.StudentID), cmd.CorrelationID)
	}

	// Append and recompute run under one day lock. If the summary cannot be
	// written the event is removed again, so a retried request counts once.
	unlock, err := h.recompute.lock(ctx, event.StudentID, event.Date)
	if err != nil {
		return nil, fmt.Errorf("ingest_event: %w", err)
	}
	defer unlock()

	if err := h.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("ingest_event: append: %w", err)
	}

	res, err := h.recompute.recomputeLocked(ctx, event.StudentID, event.Date, cmd.CorrelationID)
	if err != nil {
		if rmErr := h.events.Remove(context.WithoutCancel(ctx), event.StudentID, event.ID); rmErr != nil {
			h.logger.Error("failed to undo event append",
				logger.StudentID(event.StudentID),
				logger.String("event_id", event.ID),
				logger.Err(rmErr),
			)
		}
		return nil, fmt.Errorf("ingest_event: recompute: %w", err)
	}
	h.publish(shared.NewLearningRecordedEvent(
		event.StudentID, event.ID, event.Date, event.Kind.String(), event.Topic,
	), cmd.CorrelationID)

	h.logger.Info("event accepted",
		logger.StudentID(event.StudentID),
		logger.Day(event.Date),
		logger.String("event_id", event.ID),
		logger.String("kind", event.Kind.String()),
		logger.Topic(event.Topic),
	)

	return &IngestEventResult{
		EventID:        event.ID,
		StudentCreated: created,
		Summary:        res.Summary,
		RecordedAt:     event.RecordedAt,
	}, nil
}

func (h *IngestEventHandler) publish(event shared.Event, correlationID string) {
	if correlationID != "" {
		switch e := event.(type) {
		case shared.StudentRegisteredEvent:
			e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
			event = e
		case shared.LearningRecordedEvent:
			e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
			event = e
		}
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
