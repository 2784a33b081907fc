package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

var testToday = timeutil.Date(2026, 10, 16)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	recompute *RecomputeDayHandler
	ingest    *IngestEventHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	pub := &recordingPublisher{}
	recompute := NewRecomputeDayHandler(store.Events(), store.Summaries(), memory.NewDayLocker(), pub, nil)

	var n atomic.Int64
	ingest := NewIngestEventHandler(
		progress.MustNewValidator(),
		store.Students(),
		store.Events(),
		recompute,
		pub,
		nil,
		IngestEventHandlerConfig{
			Clock: timeutil.FixedClock(testToday.Add(9 * time.Hour)),
			NewID: func() string { return fmt.Sprintf("evt-%d", n.Add(1)) },
		},
	)

	return &fixture{store: store, publisher: pub, recompute: recompute, ingest: ingest}
}

func event(student string, day time.Time, timeSpent, score int) progress.LearningEvent {
	return progress.LearningEvent{
		StudentID: student,
		Date:      day,
		Kind:      progress.KindPractice,
		Topic:     "fractions",
		Score:     score,
		TimeSpent: timeSpent,
		Attempt:   1,
	}
}

func TestIngest_SingleEventProducesSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ingest.Handle(ctx, IngestEventCommand{Event: event("s-1", testToday, 20, 80), Source: SourceAPI})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", res.EventID)
	assert.True(t, res.StudentCreated)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 20, res.Summary.TotalTime)
	assert.Equal(t, 80.0, res.Summary.AvgScore)
	assert.Equal(t, 52.0, res.Summary.ProgressScore)
	assert.True(t, res.Summary.IsValidDay)

	stored, err := f.store.Summaries().Get(ctx, "s-1", testToday)
	require.NoError(t, err)
	assert.True(t, stored.SameValues(*res.Summary))

	assert.Equal(t, []shared.EventType{
		shared.EventStudentRegistered,
		shared.EventSummaryRecomputed,
		shared.EventLearningRecorded,
	}, f.publisher.types())
}

func TestIngest_SecondEventRecomputesWholeDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ingest.Handle(ctx, IngestEventCommand{Event: event("s-1", testToday, 5, 20)})
	require.NoError(t, err)
	res, err := f.ingest.Handle(ctx, IngestEventCommand{Event: event("s-1", testToday, 70, 100)})
	require.NoError(t, err)

	assert.False(t, res.StudentCreated)
	assert.Equal(t, 75, res.Summary.TotalTime)
	assert.Equal(t, 60.0, res.Summary.AvgScore)
	assert.Equal(t, 84.0, res.Summary.ProgressScore)

	n, err := f.store.Summaries().Count(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_RejectionLeavesStoresUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := event("s-1", testToday, 0, 80)
	_, err := f.ingest.Handle(ctx, IngestEventCommand{Event: bad})

	require.Error(t, err)
	ve, ok := progress.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "time_spent", ve.Field)

	_, err = f.store.Students().Get(ctx, "s-1")
	assert.True(t, shared.IsNotFound(err))
	all, err := f.store.Events().ListByStudent(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, all)
	n, err := f.store.Summaries().Count(ctx, "s-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.publisher.types())
}

func TestIngest_TestSubmissionForcesKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := event("s-1", testToday, 10, 90)
	e.Kind = ""
	_, err := f.ingest.Handle(ctx, IngestEventCommand{Event: e, Source: SourceTestSubmission})
	require.NoError(t, err)

	stored, err := f.store.Events().ListByStudent(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, progress.KindTest, stored[0].Kind)
	assert.Equal(t, testToday.Add(9*time.Hour), stored[0].RecordedAt)
}

func TestIngest_ConcurrentSameDayConverges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ingest.Handle(ctx, IngestEventCommand{Event: event("s-1", testToday, 3, 50)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.store.Summaries().Get(ctx, "s-1", testToday)
	require.NoError(t, err)
	assert.Equal(t, 30, got.TotalTime)
	assert.Equal(t, 50.0, got.ProgressScore)
}

func TestRecomputeDay_EmptyDayStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.recompute.Handle(ctx, RecomputeDayCommand{StudentID: "s-1", Date: testToday})
	require.NoError(t, err)
	assert.Nil(t, res.Summary)

	_, err = f.store.Summaries().Get(ctx, "s-1", testToday)
	assert.True(t, shared.IsNotFound(err))
}

func TestRecomputeDay_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ingest.Handle(ctx, IngestEventCommand{Event: event("s-1", testToday, 12, 47)})
	require.NoError(t, err)

	first, err := f.recompute.Handle(ctx, RecomputeDayCommand{StudentID: "s-1", Date: testToday})
	require.NoError(t, err)
	second, err := f.recompute.Handle(ctx, RecomputeDayCommand{StudentID: "s-1", Date: testToday})
	require.NoError(t, err)

	assert.True(t, first.Summary.SameValues(*second.Summary))
}

func TestRecomputeDay_InvalidCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.recompute.Handle(context.Background(), RecomputeDayCommand{Date: testToday})
	assert.True(t, shared.IsValidation(err))
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string, time.Time) (func(), error) {
	return nil, shared.ErrDayLockContended
}

func TestRecomputeDay_LockFailure(t *testing.T) {
	store := memory.NewStore()
	h := NewRecomputeDayHandler(store.Events(), store.Summaries(), failingLocker{}, nil, nil)

	_, err := h.Handle(context.Background(), RecomputeDayCommand{StudentID: "s-1", Date: testToday})
	assert.True(t, errors.Is(err, shared.ErrLockNotAcquired))
	assert.True(t, shared.IsRetryable(err))
}

// flakyLocker reports contention on its first Lock call and then delegates.
type flakyLocker struct {
	failed atomic.Bool
	next   progress.DayLocker
}

func (l *flakyLocker) Lock(ctx context.Context, studentID string, day time.Time) (func(), error) {
	if l.failed.CompareAndSwap(false, true) {
		return nil, shared.ErrDayLockContended
	}
	return l.next.Lock(ctx, studentID, day)
}

func TestIngest_RetryAfterLockContentionCountsOnce(t *testing.T) {
	f := newFixture(t)
	f.recompute.locker = &flakyLocker{next: memory.NewDayLocker()}
	ctx := context.Background()
	cmd := IngestEventCommand{Event: event("s-1", testToday, 20, 80), Source: SourceAPI}

	_, err := f.ingest.Handle(ctx, cmd)
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))

	stored, err := f.store.Events().ListByStudent(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	res, err := f.ingest.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Summary.TotalTime)
	assert.Equal(t, 52.0, res.Summary.ProgressScore)

	stored, err = f.store.Events().ListByStudent(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

// failingSummaries rejects every upsert.
type failingSummaries struct {
	progress.SummaryStore
}

func (failingSummaries) Upsert(context.Context, progress.DailySummary) error {
	return shared.WrapError("progress", "UpsertSummary", shared.ErrServiceUnavailable, "database unavailable", nil)
}

func TestIngest_FailedSummaryWriteRemovesEvent(t *testing.T) {
	f := newFixture(t)
	f.recompute.summaries = failingSummaries{f.store.Summaries()}
	ctx := context.Background()

	_, err := f.ingest.Handle(ctx, IngestEventCommand{Event: event("s-1", testToday, 20, 80)})
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))

	stored, err := f.store.Events().ListByStudent(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.NotContains(t, f.publisher.types(), shared.EventLearningRecorded)
}
