package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements progress.StudentStore for PostgreSQL.
type StudentRepository struct {
	db Querier
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db Querier) *StudentRepository {
	return &StudentRepository{db: db}
}

// Ensure inserts the student if missing and reports whether a row was created.
func (r *StudentRepository) Ensure(ctx context.Context, studentID string) (bool, error) {
	query := `
		INSERT INTO students (id, name, created_at)
		VALUES ($1, '', NOW())
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure student: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the student or shared.ErrStudentNotFound.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (progress.Student, error) {
	query := `
		SELECT id, name, created_at
		FROM students
		WHERE id = $1
	`

	var s progress.Student
	if err := r.db.QueryRow(ctx, query, studentID).Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
		if IsNoRows(err) {
			return progress.Student{}, shared.ErrStudentNotFound
		}
		return progress.Student{}, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}
