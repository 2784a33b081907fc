package messaging

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// Routes bus events to named handlers through a middleware chain. Handlers
// failing with a retryable domain error are retried with backoff; events that
// exhaust their attempts land in the dead letter queue.
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	bus         shared.EventSubscriber
	handlers    map[shared.EventType][]HandlerRegistration
	middlewares []Middleware
	retryConfig RetryConfig
	deadLetterQ *DeadLetterQueue
	logger      *logger.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// HandlerRegistration contains handler metadata.
type HandlerRegistration struct {
	Name     string
	Handler  shared.EventHandler
	Attempts uint
}

// RetryConfig contains retry configuration.
type RetryConfig struct {
	Attempts       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:       3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	Bus                 shared.EventSubscriber
	RetryConfig         RetryConfig
	DeadLetterQueueSize int
	Logger              *logger.Logger
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.RetryConfig.Attempts == 0 {
		config.RetryConfig = DefaultRetryConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := config.Logger.With(logger.Component("dispatcher"))

	d := &Dispatcher{
		bus:         config.Bus,
		handlers:    make(map[shared.EventType][]HandlerRegistration),
		retryConfig: config.RetryConfig,
		deadLetterQ: NewDeadLetterQueue(config.DeadLetterQueueSize),
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
	}
	d.Use(RecoveryMiddleware(log), LoggingMiddleware(log))

	return d
}

// RegisterHandler registers a handler for an event type.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return errors.New("handler cannot be nil")
	}
	if reg.Name == "" {
		return errors.New("handler name is required")
	}
	if reg.Attempts == 0 {
		reg.Attempts = d.retryConfig.Attempts
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], reg)
	d.logger.Debug("registered handler",
		logger.String("event_type", string(eventType)),
		logger.String("handler", reg.Name),
	)
	return nil
}

// Register is a convenience method for simple handler registration.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use adds middleware to the dispatcher. The first added runs outermost.
func (d *Dispatcher) Use(middlewares ...Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middlewares...)
}

// RecoveryMiddleware turns handler panics into ErrHandlerPanic.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)

			fields := []logger.Field{
				logger.String("event_type", string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Latency(time.Since(start)),
			}
			if err != nil {
				log.Warn("handler failed", append(fields, logger.Err(err))...)
			} else {
				log.Debug("handler completed", fields...)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Start subscribes the dispatcher to every event on the bus.
func (d *Dispatcher) Start() error {
	if d.bus == nil {
		return errors.New("dispatcher has no bus")
	}
	return d.bus.SubscribeAll(d.Dispatch)
}

// Dispatch runs every handler registered for the event type in order.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	handlers := d.handlers[event.EventType()]
	middlewares := d.middlewares
	d.mu.RUnlock()

	var errs []error
	for _, reg := range handlers {
		if err := d.execute(event, reg, middlewares); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) execute(event shared.Event, reg HandlerRegistration, middlewares []Middleware) error {
	handler := reg.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	err := retry.Do(
		func() error {
			if err := handler(event); err != nil {
				if !shared.IsRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		},
		retry.Context(d.ctx),
		retry.Attempts(reg.Attempts),
		retry.Delay(d.retryConfig.InitialBackoff),
		retry.MaxDelay(d.retryConfig.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}

	d.deadLetterQ.Add(DeadLetterEntry{
		Event:       event,
		HandlerName: reg.Name,
		Error:       err,
		FailedAt:    time.Now(),
	})
	return fmt.Errorf("handler %s: %w", reg.Name, err)
}

// Stop cancels pending retries.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.logger.Info("dispatcher stopped")
}

// DeadLetterQueue returns the dead letter queue.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a failed event.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO of failed events.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add adds an entry, dropping the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]DeadLetterEntry, len(q.entries))
	copy(result, q.entries)
	return result
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
