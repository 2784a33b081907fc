package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventStudentRegistered  EventType = "student.registered"
	EventLearningRecorded   EventType = "progress.event_recorded"
	EventSummaryRecomputed  EventType = "progress.summary_recomputed"
	EventBadgeUnlocked      EventType = "reward.badge_unlocked"
	EventPuzzlePiecesEarned EventType = "reward.puzzle_pieces_earned"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentRegisteredEvent is emitted when ingestion sees a student for the first time.
type StudentRegisteredEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
}

// Payload implements Event interface.
func (e StudentRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
	}
}

// NewStudentRegisteredEvent creates a new StudentRegisteredEvent.
func NewStudentRegisteredEvent(studentID string) StudentRegisteredEvent {
	return StudentRegisteredEvent{
		BaseEvent: NewBaseEvent(EventStudentRegistered, studentID),
		StudentID: studentID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LearningRecordedEvent is emitted after an event passes validation and is stored.
type LearningRecordedEvent struct {
	BaseEvent
	StudentID string    `json:"student_id"`
	EventID   string    `json:"event_id"`
	Date      time.Time `json:"date"`
	Kind      string    `json:"kind"`
	Topic     string    `json:"topic"`
}

// Payload implements Event interface.
func (e LearningRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"event_id":   e.EventID,
		"date":       e.Date.Format("2006-01-02"),
		"kind":       e.Kind,
		"topic":      e.Topic,
	}
}

// NewLearningRecordedEvent creates a new LearningRecordedEvent.
func NewLearningRecordedEvent(studentID, eventID string, date time.Time, kind, topic string) LearningRecordedEvent {
	return LearningRecordedEvent{
		BaseEvent: NewBaseEvent(EventLearningRecorded, studentID),
		StudentID: studentID,
		EventID:   eventID,
		Date:      date,
		Kind:      kind,
		Topic:     topic,
	}
}

// SummaryRecomputedEvent is emitted when a daily summary is rewritten.
type SummaryRecomputedEvent struct {
	BaseEvent
	StudentID     string    `json:"student_id"`
	Date          time.Time `json:"date"`
	ProgressScore float64   `json:"progress_score"`
	IsValidDay    bool      `json:"is_valid_day"`
}

// Payload implements Event interface.
func (e SummaryRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"date":           e.Date.Format("2006-01-02"),
		"progress_score": e.ProgressScore,
		"is_valid_day":   e.IsValidDay,
	}
}

// NewSummaryRecomputedEvent creates a new SummaryRecomputedEvent.
func NewSummaryRecomputedEvent(studentID string, date time.Time, progressScore float64, valid bool) SummaryRecomputedEvent {
	return SummaryRecomputedEvent{
		BaseEvent:     NewBaseEvent(EventSummaryRecomputed, studentID),
		StudentID:     studentID,
		Date:          date,
		ProgressScore: progressScore,
		IsValidDay:    valid,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeUnlockedEvent is emitted the first time a badge enters a student's set.
type BadgeUnlockedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Badge     string `json:"badge"`
	Streak    int    `json:"streak"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"badge":      e.Badge,
		"streak":     e.Streak,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(studentID, badge string, streak int) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, studentID),
		StudentID: studentID,
		Badge:     badge,
		Streak:    streak,
	}
}

// PuzzlePiecesEarnedEvent is emitted when the currency balance grows.
type PuzzlePiecesEarnedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Previous  int    `json:"previous"`
	Current   int    `json:"current"`
}

// Payload implements Event interface.
func (e PuzzlePiecesEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"previous":   e.Previous,
		"current":    e.Current,
	}
}

// NewPuzzlePiecesEarnedEvent creates a new PuzzlePiecesEarnedEvent.
func NewPuzzlePiecesEarnedEvent(studentID string, previous, current int) PuzzlePiecesEarnedEvent {
	return PuzzlePiecesEarnedEvent{
		BaseEvent: NewBaseEvent(EventPuzzlePiecesEarned, studentID),
		StudentID: studentID,
		Previous:  previous,
		Current:   current,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Ports
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event. Used when no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
