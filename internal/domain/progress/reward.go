package progress

import (
	"slices"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// Badge identifies an unlockable streak milestone.
type Badge string

const (
	BadgeSevenDaySurvivor Badge = "7 Day Survivor"
	BadgeThirtyDayTrophy  Badge = "30 Day Streak Trophy"
)

// DaysPerPuzzlePiece is how many all-time valid days earn one puzzle piece.
const DaysPerPuzzlePiece = 7

// Milestone grants a badge once a streak reaches MinStreak.
type Milestone struct {
	Badge     Badge
	MinStreak int
}

// Milestones returns the streak milestones in grant order. A settlement that
// crosses both thresholds appends the trophy before the survivor badge.
func Milestones() []Milestone {
	return []Milestone{
		{Badge: BadgeThirtyDayTrophy, MinStreak: 30},
		{Badge: BadgeSevenDaySurvivor, MinStreak: 7},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD STATE
// ══════════════════════════════════════════════════════════════════════════════

// RewardState is the persisted reward record of one student.
// Badges only grows. PuzzlePieces is recomputed from valid-day history.
type RewardState struct {
	StudentID    string    `json:"student_id"`
	PuzzlePieces int       `json:"puzzle_pieces"`
	Badges       []Badge   `json:"badges_unlocked"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRewardState returns the empty state created on first access.
func NewRewardState(studentID string) RewardState {
	return RewardState{StudentID: studentID, Badges: []Badge{}}
}

// HasBadge checks if the badge is already unlocked.
func (r RewardState) HasBadge(b Badge) bool {
	return slices.Contains(r.Badges, b)
}

// Settlement is the outcome of folding a streak into reward state.
type Settlement struct {
	State        RewardState
	NewBadges    []Badge
	PiecesBefore int
}

// Changed reports whether the state differs from what was loaded.
func (s Settlement) Changed() bool {
	return len(s.NewBadges) > 0 || s.State.PuzzlePieces != s.PiecesBefore
}

// PiecesFor returns the currency earned by a count of all-time valid days.
func PiecesFor(validDays int) int {
	if validDays <= 0 {
		return 0
	}
	return validDays / DaysPerPuzzlePiece
}

// Settle grants every milestone the streak has reached and recomputes currency
// from the valid-day count. The input state is not modified.
func Settle(state RewardState, currentStreak, validDays int) Settlement {
	next := RewardState{
		StudentID:    state.StudentID,
		PuzzlePieces: state.PuzzlePieces,
		Badges:       slices.Clone(state.Badges),
		UpdatedAt:    state.UpdatedAt,
	}
	if next.Badges == nil {
		next.Badges = []Badge{}
	}

	var unlocked []Badge
	for _, m := range Milestones() {
		if currentStreak >= m.MinStreak && !next.HasBadge(m.Badge) {
			next.Badges = append(next.Badges, m.Badge)
			unlocked = append(unlocked, m.Badge)
		}
	}

	next.PuzzlePieces = PiecesFor(validDays)

	return Settlement{
		State:        next,
		NewBadges:    unlocked,
		PiecesBefore: state.PuzzlePieces,
	}
}
