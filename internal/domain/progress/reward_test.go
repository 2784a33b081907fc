package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettle_GrantsMilestonesOnce(t *testing.T) {
	state := NewRewardState("s-1")

	s := Settle(state, 6, 6)
	assert.Empty(t, s.State.Badges)
	assert.False(t, s.Changed())

	s = Settle(s.State, 7, 7)
	assert.Equal(t, []Badge{BadgeSevenDaySurvivor}, s.State.Badges)
	assert.Equal(t, []Badge{BadgeSevenDaySurvivor}, s.NewBadges)
	assert.Equal(t, 1, s.State.PuzzlePieces)
	assert.True(t, s.Changed())

	s = Settle(s.State, 8, 8)
	assert.Equal(t, []Badge{BadgeSevenDaySurvivor}, s.State.Badges)
	assert.Empty(t, s.NewBadges)
	assert.False(t, s.Changed())
}

func TestSettle_LongStreakUnlocksTrophyFirst(t *testing.T) {
	s := Settle(NewRewardState("s-1"), 30, 30)

	assert.Equal(t, []Badge{BadgeThirtyDayTrophy, BadgeSevenDaySurvivor}, s.State.Badges)
	assert.Equal(t, []Badge{BadgeThirtyDayTrophy, BadgeSevenDaySurvivor}, s.NewBadges)
	assert.Equal(t, 4, s.State.PuzzlePieces)
}

func TestSettle_BadgesSurviveStreakReset(t *testing.T) {
	s := Settle(NewRewardState("s-1"), 31, 31)
	s = Settle(s.State, 0, 31)

	assert.True(t, s.State.HasBadge(BadgeSevenDaySurvivor))
	assert.True(t, s.State.HasBadge(BadgeThirtyDayTrophy))
	assert.Equal(t, 4, s.State.PuzzlePieces)
}

func TestSettle_CurrencyFollowsValidDaysNotStreak(t *testing.T) {
	s := Settle(NewRewardState("s-1"), 0, 15)
	assert.Equal(t, 2, s.State.PuzzlePieces)
	assert.Empty(t, s.State.Badges)
}

func TestSettle_CurrencyIsRecomputedFromHistory(t *testing.T) {
	state := NewRewardState("s-1")
	state.PuzzlePieces = 2

	s := Settle(state, 0, 7)

	assert.Equal(t, 1, s.State.PuzzlePieces)
	assert.Equal(t, 2, s.PiecesBefore)
	assert.True(t, s.Changed())
}

func TestSettle_DoesNotMutateInput(t *testing.T) {
	state := RewardState{StudentID: "s-1", Badges: make([]Badge, 0, 4)}

	_ = Settle(state, 30, 30)

	assert.Empty(t, state.Badges)
	assert.Equal(t, 0, state.PuzzlePieces)
}

func TestPiecesFor(t *testing.T) {
	assert.Equal(t, 0, PiecesFor(-1))
	assert.Equal(t, 0, PiecesFor(6))
	assert.Equal(t, 1, PiecesFor(7))
	assert.Equal(t, 1, PiecesFor(13))
	assert.Equal(t, 2, PiecesFor(14))
}
