package query

import (
	"github.com/alem-hub/progress-hub/internal/domain/shared"
)

func invalidQuery(op string, err error) error {
	return shared.WrapError("query", op, shared.ErrInvalidInput, "invalid query", err)
}
