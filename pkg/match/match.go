// Package match drives a single game between two configured, already
// started players through its full lifecycle: board setup, the
// alternating turn loop, draw and resign adjudication, and mid-game crash
// handling, per spec.md §4.5.
package match

import (
	"context"
	"time"

	"github.com/herohde/gauntlet/pkg/player"
	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/uci"
	"github.com/herohde/gauntlet/pkg/xerrors"
)

// MoveRecord is one played (or attempted) half-move.
type MoveRecord struct {
	Move      string
	Legal     bool
	ScoreCP   int
	ScoreMate int
	IsMate    bool
	Depth     int
	SelDepth  int
	Nodes     uint64
	ElapsedMs int64
}

// Participant is one side's identity and outcome in a finished game.
type Participant struct {
	Name   string
	Color  rules.Side
	Result player.Result
}

// GameRecord is the structured outcome of one Runner.Run, per spec.md §3.
type GameRecord struct {
	RoundID, GameID int
	StartFEN        string
	Moves           []MoveRecord

	White, Black Participant

	TerminationReason string
	StartTime         time.Time
	EndTime           time.Time

	NeedsRestart bool
}

// DrawConfig configures draw adjudication (spec.md §4.5).
type DrawConfig struct {
	Enabled    bool
	MoveNumber int // earliest played-move count at which adjudication may trigger
	MoveCount  int // consecutive qualifying plies required
	ScoreCP    int // |score| must be <= this
}

// ResignConfig configures resign adjudication (spec.md §4.5).
type ResignConfig struct {
	Enabled   bool
	MoveCount int // consecutive qualifying plies required
	ScoreCP   int // |score| must be >= this
}

// Runner drives one game to completion. The two Players passed to Run must
// already have their engines started (Engine.Start succeeded) -- the
// engine_start_failed path of spec.md §4.5 step 1 is handled by the
// caller (pkg/tournament's task), since only it knows each engine's
// EngineConfiguration and can decide whether to retry a fresh process.
type Runner struct {
	RoundID, GameID int
	Rules           rules.ChessRules
	Draw            DrawConfig
	Resign          ResignConfig
	Recover         bool

	// Now lets tests substitute a deterministic clock; defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// adjState tracks one player's running draw/resign adjudication counters.
type adjState struct {
	drawPlies, resignPlies int
	lastScoreCP            int
}

// Run executes board setup and the turn loop between white and black from
// the given opening (startFEN plus an already-played move prefix).
func (r *Runner) Run(ctx context.Context, white, black *player.Player, startFEN string, openingMoves []string) *GameRecord {
	rec := &GameRecord{
		RoundID:   r.RoundID,
		GameID:    r.GameID,
		StartFEN:  startFEN,
		White:     Participant{Name: white.Name, Color: rules.White},
		Black:     Participant{Name: black.Name, Color: rules.Black},
		StartTime: r.now(),
	}

	pos, err := r.Rules.NewGame(startFEN)
	if err != nil {
		return r.fatal(rec, "invalid opening fen: "+err.Error())
	}
	for _, m := range openingMoves {
		next, ok := r.Rules.ApplyMove(pos, m)
		if !ok {
			return r.fatal(rec, "illegal move in opening: "+m)
		}
		pos = next
		rec.Moves = append(rec.Moves, MoveRecord{Move: m, Legal: true})
	}

	if !white.Engine.NewGame(ctx) {
		return r.crash(rec, white, "white failed ucinewgame")
	}
	if !black.Engine.NewGame(ctx) {
		return r.crash(rec, black, "black failed ucinewgame")
	}

	byColor := map[rules.Side]*player.Player{rules.White: white, rules.Black: black}
	adj := map[rules.Side]*adjState{rules.White: {}, rules.Black: {}}
	playedMoves := len(openingMoves)

	for {
		stm := r.Rules.SideToMove(pos)
		us := byColor[stm]
		them := byColor[stm.Opponent()]

		if result, reason := r.Rules.IsGameOver(pos); result != rules.Undecided {
			r.finishResult(rec, result, string(reason))
			r.quitBoth(white, black)
			return rec
		}

		if !us.Engine.Ping(ctx) {
			r.finishLoss(rec, us, "ping_timeout")
			r.quitBoth(white, black)
			return rec
		}

		moves := legalMoves(rec.Moves)
		if err := us.Engine.Position(startFEN, moves); err != nil {
			return r.handleIOError(rec, white, black, us, err)
		}

		lim := uci.Limits{Nodes: us.Nodes, Depth: us.Depth, FixedTimeMs: us.TC.FixedTimeMs, MovesToGo: us.MovesToGo()}
		readTimeout, err := us.Engine.Go(stm, lim, uint64(clockMs(us)), uint64(clockMs(them)),
			us.TC.IncrementMs, them.TC.IncrementMs, us.TC.TimeMarginMs)
		if err != nil {
			return r.handleIOError(rec, white, black, us, err)
		}

		moveStart := r.now()
		bestmove, timedOut, err := us.Engine.ReadBestMove(readTimeout)
		elapsed := r.now().Sub(moveStart).Milliseconds()

		if timedOut {
			r.finishLoss(rec, us, "timeout")
			r.quitBoth(white, black)
			return rec
		}
		if err != nil {
			return r.handleIOError(rec, white, black, us, err)
		}
		if us.UpdateTime(elapsed) {
			r.finishLoss(rec, us, "timeout")
			r.quitBoth(white, black)
			return rec
		}

		next, ok := r.Rules.ApplyMove(pos, bestmove)
		if !ok {
			rec.Moves = append(rec.Moves, MoveRecord{Move: bestmove, Legal: false, ElapsedMs: elapsed})
			r.finishLoss(rec, us, "illegal_move")
			r.quitBoth(white, black)
			return rec
		}

		info := us.Engine.LastInfo()
		mr := MoveRecord{
			Move: bestmove, Legal: true,
			ScoreCP: info.ScoreCP, ScoreMate: info.ScoreMate, IsMate: info.IsMate,
			Depth: info.Depth, SelDepth: info.SelDepth, Nodes: info.Nodes,
			ElapsedMs: elapsed,
		}

		r.updateAdjudication(adj[stm], playedMoves+1, mr)
		if r.checkResign(adj[stm]) {
			loser := us
			if adj[stm].lastScoreCP > 0 {
				loser = them
			}
			r.finishLoss(rec, loser, "resign adjudication")
			r.quitBoth(white, black)
			return rec
		}
		if r.checkDraw(adj[rules.White], adj[rules.Black]) {
			r.finishResult(rec, rules.Draw, "adjudication")
			r.quitBoth(white, black)
			return rec
		}

		pos = next
		rec.Moves = append(rec.Moves, mr)
		playedMoves++
	}
}

// handleIOError routes a pipe error to either crash recovery (if it's a
// broken-pipe/disconnect) or a plain game loss for the offending side.
func (r *Runner) handleIOError(rec *GameRecord, white, black, offender *player.Player, err error) *GameRecord {
	if xerrors.Is(err, xerrors.PipeBroken) {
		return r.crash(rec, offender, "disconnect")
	}
	r.finishLoss(rec, offender, "disconnect")
	r.quitBoth(white, black)
	return rec
}

func (r *Runner) fatal(rec *GameRecord, reason string) *GameRecord {
	rec.TerminationReason = reason
	rec.EndTime = r.now()
	return rec
}

// crash handles a mid-game pipe break: restart the game (needs_restart) if
// recover is configured, else record it as a loss for the offending side.
func (r *Runner) crash(rec *GameRecord, offender *player.Player, reason string) *GameRecord {
	if r.Recover {
		rec.NeedsRestart = true
		rec.TerminationReason = reason
		rec.EndTime = r.now()
		return rec
	}
	r.finishLoss(rec, offender, reason)
	return rec
}

func (r *Runner) finishResult(rec *GameRecord, result rules.Result, reason string) {
	rec.TerminationReason = reason
	rec.EndTime = r.now()
	switch result {
	case rules.WhiteWins:
		rec.White.Result, rec.Black.Result = player.Win, player.Loss
	case rules.BlackWins:
		rec.White.Result, rec.Black.Result = player.Loss, player.Win
	default:
		rec.White.Result, rec.Black.Result = player.DrawResult, player.DrawResult
	}
}

func (r *Runner) finishLoss(rec *GameRecord, loser *player.Player, reason string) {
	rec.TerminationReason = reason
	rec.EndTime = r.now()
	if loser.Color == rules.White {
		rec.White.Result, rec.Black.Result = player.Loss, player.Win
	} else {
		rec.White.Result, rec.Black.Result = player.Win, player.Loss
	}
}

func (r *Runner) quitBoth(white, black *player.Player) {
	white.Engine.Quit()
	black.Engine.Quit()
}

// updateAdjudication applies spec.md §4.5's independent-per-player counters.
func (r *Runner) updateAdjudication(a *adjState, playedMoveNumber int, mr MoveRecord) {
	isCP := !mr.IsMate
	if isCP {
		a.lastScoreCP = mr.ScoreCP
	}

	if r.Draw.Enabled && isCP && playedMoveNumber >= r.Draw.MoveNumber && abs(mr.ScoreCP) <= r.Draw.ScoreCP {
		a.drawPlies++
	} else {
		a.drawPlies = 0
	}

	if r.Resign.Enabled && isCP && abs(mr.ScoreCP) >= r.Resign.ScoreCP {
		a.resignPlies++
	} else {
		a.resignPlies = 0
	}
}

func (r *Runner) checkDraw(white, black *adjState) bool {
	if !r.Draw.Enabled {
		return false
	}
	return white.drawPlies >= r.Draw.MoveCount || black.drawPlies >= r.Draw.MoveCount
}

func (r *Runner) checkResign(a *adjState) bool {
	return r.Resign.Enabled && a.resignPlies >= r.Resign.MoveCount
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clockMs(p *player.Player) int64 {
	if p.TimeLeftMs < 0 {
		return 0
	}
	return p.TimeLeftMs
}

func legalMoves(recs []MoveRecord) []string {
	moves := make([]string, 0, len(recs))
	for _, m := range recs {
		if m.Legal {
			moves = append(moves, m.Move)
		}
	}
	return moves
}
