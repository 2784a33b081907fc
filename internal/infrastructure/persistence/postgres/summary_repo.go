package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SUMMARY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const summaryColumns = `student_id, date, total_time, avg_score, progress_score, is_valid_day, updated_at`

// SummaryRepository implements progress.SummaryStore for PostgreSQL.
// (student_id, date) is the primary key, so Upsert always leaves one row.
type SummaryRepository struct {
	db Querier
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(db Querier) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert creates or overwrites the summary for (StudentID, Date).
func (r *SummaryRepository) Upsert(ctx context.Context, s progress.DailySummary) error {
	query := `
		INSERT INTO daily_summaries (student_id, date, total_time, avg_score, progress_score, is_valid_day, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (student_id, date) DO UPDATE SET
			total_time = EXCLUDED.total_time,
			avg_score = EXCLUDED.avg_score,
			progress_score = EXCLUDED.progress_score,
			is_valid_day = EXCLUDED.is_valid_day,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		s.StudentID,
		timeutil.DateOf(s.Date),
		s.TotalTime,
		s.AvgScore,
		s.ProgressScore,
		s.IsValidDay,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}
	return nil
}

// Get returns a single summary or shared.ErrSummaryNotFound.
func (r *SummaryRepository) Get(ctx context.Context, studentID string, day time.Time) (progress.DailySummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM daily_summaries
		WHERE student_id = $1 AND date = $2
	`

	s, err := scanSummary(r.db.QueryRow(ctx, query, studentID, timeutil.DateOf(day)))
	if err != nil {
		if IsNoRows(err) {
			return progress.DailySummary{}, shared.ErrSummaryNotFound
		}
		return progress.DailySummary{}, fmt.Errorf("failed to get daily summary: %w", err)
	}
	return s, nil
}

// ListByStudent returns all summaries for a student ordered by date ascending.
func (r *SummaryRepository) ListByStudent(ctx context.Context, studentID string) ([]progress.DailySummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM daily_summaries
		WHERE student_id = $1
		ORDER BY date ASC
	`

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}
	return scanSummaries(rows)
}

// ListValid returns valid-day summaries dated on or before until, newest first.
func (r *SummaryRepository) ListValid(ctx context.Context, studentID string, until time.Time) ([]progress.DailySummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM daily_summaries
		WHERE student_id = $1 AND is_valid_day AND date <= $2
		ORDER BY date DESC
	`

	rows, err := r.db.Query(ctx, query, studentID, timeutil.DateOf(until))
	if err != nil {
		return nil, fmt.Errorf("failed to list valid days: %w", err)
	}
	return scanSummaries(rows)
}

// CountValid returns the all-time number of valid days.
func (r *SummaryRepository) CountValid(ctx context.Context, studentID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM daily_summaries WHERE student_id = $1 AND is_valid_day`, studentID)
}

// Count returns the number of summaries of any validity.
func (r *SummaryRepository) Count(ctx context.Context, studentID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM daily_summaries WHERE student_id = $1`, studentID)
}

func (r *SummaryRepository) count(ctx context.Context, query, studentID string) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx, query, studentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count daily summaries: %w", err)
	}
	return int(n), nil
}

func scanSummary(row pgx.Row) (progress.DailySummary, error) {
	var s progress.DailySummary
	err := row.Scan(
		&s.StudentID,
		&s.Date,
		&s.TotalTime,
		&s.AvgScore,
		&s.ProgressScore,
		&s.IsValidDay,
		&s.UpdatedAt,
	)
	s.Date = timeutil.DateOf(s.Date)
	return s, err
}

func scanSummaries(rows pgx.Rows) ([]progress.DailySummary, error) {
	defer rows.Close()

	var out []progress.DailySummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily summaries: %w", err)
	}
	return out, nil
}
