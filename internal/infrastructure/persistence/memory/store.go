// Package memory provides in-process implementations of the progress store
// ports. It backs the service when no database is configured and is the
// default wiring for tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

type dayKey struct {
	studentID string
	day       string
}

func keyOf(studentID string, day time.Time) dayKey {
	return dayKey{studentID: studentID, day: timeutil.FormatDateStr(timeutil.DateOf(day))}
}

// Store holds events, summaries, rewards and students behind one RWMutex,
// which gives read-your-writes consistency across all four ports.
type Store struct {
	mu        sync.RWMutex
	events    map[string][]progress.LearningEvent
	summaries map[dayKey]progress.DailySummary
	rewards   map[string]progress.RewardState
	students  map[string]progress.Student
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		events:    make(map[string][]progress.LearningEvent),
		summaries: make(map[dayKey]progress.DailySummary),
		rewards:   make(map[string]progress.RewardState),
		students:  make(map[string]progress.Student),
		now:       time.Now,
	}
}

// Events returns the store as an EventStore.
func (s *Store) Events() progress.EventStore { return eventStore{s} }

// Summaries returns the store as a SummaryStore.
func (s *Store) Summaries() progress.SummaryStore { return summaryStore{s} }

// Rewards returns the store as a RewardStore.
func (s *Store) Rewards() progress.RewardStore { return rewardStore{s} }

// Students returns the store as a StudentStore.
func (s *Store) Students() progress.StudentStore { return studentStore{s} }

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

type eventStore struct{ s *Store }

func (r eventStore) Append(ctx context.Context, event progress.LearningEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	event.Date = timeutil.DateOf(event.Date)
	if event.RecordedAt.IsZero() {
		event.RecordedAt = r.s.now()
	}
	r.s.events[event.StudentID] = append(r.s.events[event.StudentID], event)
	return nil
}

func (r eventStore) Remove(ctx context.Context, studentID, eventID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.events[studentID] = slices.DeleteFunc(r.s.events[studentID], func(e progress.LearningEvent) bool {
		return e.ID == eventID
	})
	return nil
}

func (r eventStore) ListByDay(ctx context.Context, studentID string, day time.Time) ([]progress.LearningEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []progress.LearningEvent
	for _, e := range r.s.events[studentID] {
		if timeutil.IsSameDay(e.Date, day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r eventStore) ListByStudent(ctx context.Context, studentID string) ([]progress.LearningEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return slices.Clone(r.s.events[studentID]), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

type summaryStore struct{ s *Store }

func (r summaryStore) Upsert(ctx context.Context, summary progress.DailySummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	summary.Date = timeutil.DateOf(summary.Date)
	summary.UpdatedAt = r.s.now()
	r.s.summaries[keyOf(summary.StudentID, summary.Date)] = summary
	return nil
}

func (r summaryStore) Get(ctx context.Context, studentID string, day time.Time) (progress.DailySummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	summary, ok := r.s.summaries[keyOf(studentID, day)]
	if !ok {
		return progress.DailySummary{}, shared.ErrSummaryNotFound
	}
	return summary, nil
}

func (r summaryStore) ListByStudent(ctx context.Context, studentID string) ([]progress.DailySummary, error) {
	out := r.filter(studentID, func(progress.DailySummary) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r summaryStore) ListValid(ctx context.Context, studentID string, until time.Time) ([]progress.DailySummary, error) {
	until = timeutil.DateOf(until)
	out := r.filter(studentID, func(s progress.DailySummary) bool {
		return s.IsValidDay && !s.Date.After(until)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r summaryStore) CountValid(ctx context.Context, studentID string) (int, error) {
	return len(r.filter(studentID, func(s progress.DailySummary) bool { return s.IsValidDay })), nil
}

func (r summaryStore) Count(ctx context.Context, studentID string) (int, error) {
	return len(r.filter(studentID, func(progress.DailySummary) bool { return true })), nil
}

func (r summaryStore) filter(studentID string, keep func(progress.DailySummary) bool) []progress.DailySummary {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []progress.DailySummary
	for k, s := range r.s.summaries {
		if k.studentID == studentID && keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

type rewardStore struct{ s *Store }

func (r rewardStore) GetOrCreate(ctx context.Context, studentID string) (progress.RewardState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state, ok := r.s.rewards[studentID]
	if !ok {
		state = progress.NewRewardState(studentID)
		state.UpdatedAt = r.s.now()
		r.s.rewards[studentID] = state
	}
	state.Badges = slices.Clone(state.Badges)
	return state, nil
}

func (r rewardStore) Save(ctx context.Context, state progress.RewardState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	merged := r.s.rewards[state.StudentID]
	merged.StudentID = state.StudentID
	merged.Badges = slices.Clone(merged.Badges)
	for _, b := range state.Badges {
		if !slices.Contains(merged.Badges, b) {
			merged.Badges = append(merged.Badges, b)
		}
	}
	if merged.Badges == nil {
		merged.Badges = []progress.Badge{}
	}
	merged.PuzzlePieces = state.PuzzlePieces
	merged.UpdatedAt = r.s.now()
	r.s.rewards[state.StudentID] = merged
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

type studentStore struct{ s *Store }

func (r studentStore) Ensure(ctx context.Context, studentID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[studentID]; ok {
		return false, nil
	}
	r.s.students[studentID] = progress.Student{ID: studentID, CreatedAt: r.s.now()}
	return true, nil
}

func (r studentStore) Get(ctx context.Context, studentID string) (progress.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.students[studentID]
	if !ok {
		return progress.Student{}, shared.ErrStudentNotFound
	}
	return st, nil
}
