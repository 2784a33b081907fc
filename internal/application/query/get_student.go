package query

import (
	"context"
	"errors"
	"strings"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
)

// GetStudentQuery identifies the student.
type GetStudentQuery struct {
	StudentID string
}

// Validate validates the query.
func (q GetStudentQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// GetStudentHandler looks up a registered student.
type GetStudentHandler struct {
	students progress.StudentStore
}

// NewGetStudentHandler creates a new GetStudentHandler.
func NewGetStudentHandler(students progress.StudentStore) *GetStudentHandler {
	return &GetStudentHandler{students: students}
}

// Handle returns the student or shared.ErrStudentNotFound.
func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (progress.Student, error) {
	if err := q.Validate(); err != nil {
		return progress.Student{}, invalidQuery("GetStudent", err)
	}
	return h.students.Get(ctx, q.StudentID)
}
