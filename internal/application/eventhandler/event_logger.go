package eventhandler

import (
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
)

// EventLogger writes one structured line per domain event.
type EventLogger struct {
	logger *logger.Logger
}

// NewEventLogger creates a new EventLogger.
func NewEventLogger(log *logger.Logger) *EventLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogger{logger: log.With(logger.Component("events"))}
}

// Handle implements shared.EventHandler.
func (l *EventLogger) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	for k, v := range event.Payload() {
		fields = append(fields, logger.Any(k, v))
	}

	l.logger.Info("domain event", fields...)
	return nil
}
