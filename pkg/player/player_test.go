package player_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/herohde/gauntlet/pkg/player"
	"github.com/herohde/gauntlet/pkg/rules"
)

func TestNewClockBasedStartsAtTimeMs(t *testing.T) {
	p := player.New(nil, "white-engine", rules.White, 0, 0, player.TimeControl{TimeMs: 60000})
	assert.Equal(t, int64(60000), p.TimeLeftMs)
}

func TestNewFixedTimeStartsAtZero(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{FixedTimeMs: 100})
	assert.Equal(t, int64(0), p.TimeLeftMs)
}

func TestNewNodeLimitedStartsAtZero(t *testing.T) {
	p := player.New(nil, "e", rules.White, 50000, 0, player.TimeControl{TimeMs: 60000})
	assert.Equal(t, int64(0), p.TimeLeftMs)
}

func TestUpdateTimeDecrementsAndAddsIncrement(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{TimeMs: 10000, IncrementMs: 500})
	timedOut := p.UpdateTime(3000)
	assert.False(t, timedOut)
	assert.Equal(t, int64(10000-3000+500), p.TimeLeftMs)
}

func TestUpdateTimeDetectsTimeout(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{TimeMs: 1000})
	timedOut := p.UpdateTime(5000)
	assert.True(t, timedOut)
}

func TestUpdateTimeRespectsMargin(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{TimeMs: 1000, TimeMarginMs: 200})
	assert.False(t, p.UpdateTime(1100)) // overrun within margin
	assert.Equal(t, int64(0), p.TimeLeftMs)
}

func TestUpdateTimeFixedLimitNeverTimesOut(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{FixedTimeMs: 100})
	assert.False(t, p.UpdateTime(10_000_000))
}

func TestUpdateTimeAddsPeriodBonusAtMoveBoundary(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{Moves: 2, TimeMs: 5000})
	p.UpdateTime(1000) // move 1 of 2
	assert.Equal(t, uint32(1), p.MovesToGo())
	p.UpdateTime(1000) // move 2 of 2: period resets, bonus added
	assert.Equal(t, int64(5000-1000-1000+5000), p.TimeLeftMs)
	assert.Equal(t, uint32(2), p.MovesToGo())
}

func TestMovesToGoZeroWhenSuddenDeath(t *testing.T) {
	p := player.New(nil, "e", rules.White, 0, 0, player.TimeControl{TimeMs: 60000})
	assert.Equal(t, uint32(0), p.MovesToGo())
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "win", player.Win.String())
	assert.Equal(t, "loss", player.Loss.String())
	assert.Equal(t, "draw", player.DrawResult.String())
	assert.Equal(t, "none", player.None.String())
}
