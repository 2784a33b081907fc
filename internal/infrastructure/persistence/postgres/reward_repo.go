package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RewardRepository implements progress.RewardStore for PostgreSQL.
type RewardRepository struct {
	db Querier
}

// NewRewardRepository creates a new RewardRepository.
func NewRewardRepository(db Querier) *RewardRepository {
	return &RewardRepository{db: db}
}

// GetOrCreate returns the stored state, inserting an empty row on first access.
func (r *RewardRepository) GetOrCreate(ctx context.Context, studentID string) (progress.RewardState, error) {
	insert := `
		INSERT INTO rewards (student_id, puzzle_pieces, badges, updated_at)
		VALUES ($1, 0, '{}', NOW())
		ON CONFLICT (student_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, studentID); err != nil {
		if IsForeignKeyViolation(err) {
			return progress.RewardState{}, shared.ErrStudentNotFound
		}
		return progress.RewardState{}, fmt.Errorf("failed to create reward state: %w", err)
	}

	query := `
		SELECT student_id, puzzle_pieces, badges, updated_at
		FROM rewards
		WHERE student_id = $1
	`

	var (
		state  progress.RewardState
		badges []string
	)
	err := r.db.QueryRow(ctx, query, studentID).Scan(
		&state.StudentID,
		&state.PuzzlePieces,
		&badges,
		&state.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return progress.RewardState{}, shared.ErrRewardNotFound
		}
		return progress.RewardState{}, fmt.Errorf("failed to get reward state: %w", err)
	}

	state.Badges = make([]progress.Badge, len(badges))
	for i, b := range badges {
		state.Badges[i] = progress.Badge(b)
	}
	return state, nil
}

// Save merges state into the stored row in one statement: new badges are
// appended in the given order and puzzle_pieces is overwritten.
func (r *RewardRepository) Save(ctx context.Context, state progress.RewardState) error {
	query := `
		INSERT INTO rewards (student_id, puzzle_pieces, badges, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (student_id) DO UPDATE SET
			puzzle_pieces = EXCLUDED.puzzle_pieces,
			badges = rewards.badges || ARRAY(
				SELECT t.b
				FROM unnest(EXCLUDED.badges) WITH ORDINALITY AS t(b, n)
				WHERE t.b <> ALL(rewards.badges)
				ORDER BY t.n
			),
			updated_at = NOW()
	`

	badges := make([]string, len(state.Badges))
	for i, b := range state.Badges {
		badges[i] = string(b)
	}

	if _, err := r.db.Exec(ctx, query, state.StudentID, state.PuzzlePieces, badges); err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrStudentNotFound
		}
		return fmt.Errorf("failed to save reward state: %w", err)
	}
	return nil
}
