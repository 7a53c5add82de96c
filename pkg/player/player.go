// Package player pairs a UciEngine with its mutable per-game time budget.
package player

import (
	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/uci"
)

// Result is a single player's outcome in a finished game.
type Result int

const (
	None Result = iota
	Win
	Loss
	DrawResult
)

func (r Result) String() string {
	switch r {
	case Win:
		return "win"
	case Loss:
		return "loss"
	case DrawResult:
		return "draw"
	default:
		return "none"
	}
}

// TimeControl mirrors spec.md's TimeControl: exactly one of FixedTimeMs or
// TimeMs is nonzero for a time-based limit, or neither for node/depth limits.
type TimeControl struct {
	Moves        uint32 // per control period; 0 == sudden death
	TimeMs       uint64
	IncrementMs  uint64
	TimeMarginMs uint64
	FixedTimeMs  uint64
}

func (tc TimeControl) IsClockBased() bool {
	return tc.FixedTimeMs == 0 && tc.TimeMs > 0
}

// Player tracks one side's engine handle and clock across a single game.
type Player struct {
	Engine *uci.Engine
	Name   string
	Color  rules.Side
	Result Result

	// Nodes/Depth are node- or depth-limited searches (spec.md's
	// EngineConfiguration.limits); when either is set the clock is not used.
	Nodes uint64
	Depth uint32

	TC         TimeControl
	TimeLeftMs int64 // signed so Timeout (negative overrun) is observable

	movesPlayedInPeriod uint32
}

// New creates a Player with its clock initialized from tc.
func New(e *uci.Engine, name string, color rules.Side, nodes uint64, depth uint32, tc TimeControl) *Player {
	start := int64(tc.TimeMs)
	if tc.FixedTimeMs > 0 || nodes > 0 || depth > 0 {
		start = 0 // fixed-time and node/depth limits do not track a clock
	}
	return &Player{Engine: e, Name: name, Color: color, Nodes: nodes, Depth: depth, TC: tc, TimeLeftMs: start}
}

// UpdateTime applies spec.md §4.3's clock rule after a move of elapsedMs.
// Returns true if the player ran out of time (a loss).
func (p *Player) UpdateTime(elapsedMs int64) (timedOut bool) {
	if p.TC.FixedTimeMs > 0 || p.Nodes > 0 || p.Depth > 0 {
		return false // fixed-time / node / depth limited: no clock tracked
	}

	p.TimeLeftMs -= elapsedMs
	if p.TimeLeftMs < -int64(p.TC.TimeMarginMs) {
		return true
	}
	if p.TimeLeftMs < 0 {
		p.TimeLeftMs = 0
	}
	p.TimeLeftMs += int64(p.TC.IncrementMs)

	if p.TC.Moves > 0 {
		p.movesPlayedInPeriod++
		if p.movesPlayedInPeriod >= p.TC.Moves {
			p.TimeLeftMs += int64(p.TC.TimeMs)
			p.movesPlayedInPeriod = 0
		}
	}
	return false
}

// MovesToGo returns the moves remaining in the current control period, for
// the go-command's movestogo parameter (0 means sudden death / not applicable).
func (p *Player) MovesToGo() uint32 {
	if p.TC.Moves == 0 {
		return 0
	}
	remaining := p.TC.Moves - p.movesPlayedInPeriod
	if remaining == 0 {
		return p.TC.Moves
	}
	return remaining
}
