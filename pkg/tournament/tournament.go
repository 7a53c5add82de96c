// Package tournament implements the round-robin scheduler: it enumerates
// pairings x rounds x games, fetches openings, dispatches games onto a
// worker pool, and folds each completion into the shared stats map,
// interval reports, autosave snapshots, and the SPRT stop decision, per
// spec.md §4.7.
package tournament

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seekerror/logw"
	"go.uber.org/atomic"

	"github.com/herohde/gauntlet/pkg/book"
	"github.com/herohde/gauntlet/pkg/config"
	"github.com/herohde/gauntlet/pkg/match"
	"github.com/herohde/gauntlet/pkg/output"
	"github.com/herohde/gauntlet/pkg/player"
	"github.com/herohde/gauntlet/pkg/pool"
	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/stats"
	"github.com/herohde/gauntlet/pkg/uci"
)

// Option configures a Scheduler at construction, mirroring the functional
// options pattern used throughout this driver's engine/uci layers.
type Option func(*Scheduler)

// WithReporter injects the output capability; defaults to a discarding no-op.
func WithReporter(r output.Reporter) Option {
	return func(s *Scheduler) { s.reporter = r }
}

// WithPGNWriter injects the append-only PGN persistence collaborator.
func WithPGNWriter(w *output.PGNWriter) Option {
	return func(s *Scheduler) { s.pgn = w }
}

// WithSnapshotPath enables periodic JSON autosave of the stats map.
func WithSnapshotPath(path string) Option {
	return func(s *Scheduler) { s.snapshotPath = path }
}

type pairKey struct{ A, B string }

func canonKey(a, b string) (key pairKey, swapped bool) {
	if a <= b {
		return pairKey{A: a, B: b}, false
	}
	return pairKey{A: b, B: a}, true
}

func (k pairKey) String() string {
	return fmt.Sprintf("%v vs %v", k.A, k.B)
}

// pendingPair holds the first-completed half of a two-game, colors-swapped
// pentanomial pairing unit until its twin finishes.
type pendingPair struct {
	outcome stats.GameOutcome
}

// Scheduler is the round-robin driver.
type Scheduler struct {
	engines []config.EngineConfig
	book    *book.Book
	pool    *pool.Pool
	rules   rules.ChessRules
	opts    config.TournamentOptions
	sprt    *stats.Sprt

	reporter     output.Reporter
	pgn          *output.PGNWriter
	snapshotPath string

	mu       sync.Mutex
	statsMap map[pairKey]stats.Stats
	pending  map[string]pendingPair // keyed by pairKey+round+opening

	matchCount   atomic.Uint64
	roundCount   atomic.Uint64
	timeoutCount atomic.Uint64
	stopFlag     atomic.Bool
}

// New constructs a Scheduler ready to Run.
func New(engines []config.EngineConfig, b *book.Book, rl rules.ChessRules, opts config.TournamentOptions, opt ...Option) *Scheduler {
	s := &Scheduler{
		engines:  engines,
		book:     b,
		rules:    rl,
		opts:     opts,
		pool:     pool.New(opts.Concurrency),
		statsMap: make(map[pairKey]stats.Stats),
		pending:  make(map[string]pendingPair),
		reporter: output.NewConsoleReporter(discardWriter{}),
	}
	if opts.Sprt.Enabled {
		s.sprt = stats.New(opts.Sprt.Alpha, opts.Sprt.Beta, opts.Sprt.Elo0, opts.Sprt.Elo1, opts.Sprt.Model)
	}
	for _, o := range opt {
		o(s)
	}
	return s
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// task describes one scheduled game.
type task struct {
	i, j      int // engine indices; game g=0 plays i=White, j=Black
	round     int
	g         int
	openingID uint64
}

// Run enumerates the full pairing x round x game task list, dispatches it
// onto the worker pool, and blocks until every task completes or the SPRT
// stop flag is set and no further games are dispatched.
func (s *Scheduler) Run(ctx context.Context) {
	s.pool.Start(ctx)
	logw.Infof(ctx, "Tournament starting: %d engines, %d rounds, %d games/round", len(s.engines), s.opts.Rounds, s.opts.Games)

	n := len(s.engines)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for round := 0; round < s.opts.Rounds; round++ {
				if s.stopFlag.Load() {
					break
				}
				openingID := s.book.NextID()
				for g := 0; g < s.opts.Games; g++ {
					if s.stopFlag.Load() {
						break
					}
					t := task{i: i, j: j, round: round, g: g, openingID: openingID}
					s.pool.Submit(func(ctx context.Context) { s.runTask(ctx, t) })
				}
				s.roundCount.Add(1)
			}
		}
	}

	s.pool.Wait()
	logw.Infof(ctx, "Tournament finished: %d games played", s.matchCount.Load())
}

// Stop requests an early, cooperative shutdown. cmd/gauntlet does not call
// it; the tests do.
func (s *Scheduler) Stop() {
	s.stopFlag.Store(true)
	s.pool.Stop()
}

func (s *Scheduler) runTask(ctx context.Context, t task) {
	white, black, ok := s.startEngines(ctx, t)
	if !ok {
		return
	}

	opening := s.book.Fetch(t.openingID)
	// game index 0: engine i is White; index 1 (paired play) swaps colors.
	if t.g%2 == 1 {
		white, black = black, white
		white.Color, black.Color = rules.White, rules.Black
	}

	runner := &match.Runner{
		RoundID: t.round, GameID: int(t.openingID)*10 + t.g,
		Rules: s.rules, Recover: s.opts.Recover,
		Draw: s.opts.DrawConfig(), Resign: s.opts.ResignConfig(),
	}
	rec := runner.Run(ctx, white, black, opening.FEN, opening.Moves)

	if rec.NeedsRestart {
		logw.Warningf(ctx, "Game %d needs restart, re-enqueuing", rec.GameID)
		s.resubmit(t)
		return
	}

	s.onCompletion(ctx, t, opening, rec)
}

// startEngines constructs and starts both engines for t, per spec.md §4.5
// step 1: on start failure, either record needs_restart (recover=true) or
// propagate the loss directly without ever entering the turn loop.
func (s *Scheduler) startEngines(ctx context.Context, t task) (white, black *player.Player, ok bool) {
	ci, cj := s.engines[t.i], s.engines[t.j]

	ei := uci.New(ci.Name, time.Duration(ci.PingMs)*time.Millisecond, ci.Options, ci.OptionOrder)
	ej := uci.New(cj.Name, time.Duration(cj.PingMs)*time.Millisecond, cj.Options, cj.OptionOrder)

	errI := ei.Start(ctx, ci.Command, ci.WorkingDir)
	errJ := ej.Start(ctx, cj.Command, cj.WorkingDir)
	if errI != nil || errJ != nil {
		if !ci.Recover && !cj.Recover {
			// The failing engine(s) lose the game outright; treat as a
			// degenerate game record so stats still see the result.
			rec := &match.GameRecord{
				RoundID: t.round, GameID: int(t.openingID)*10 + t.g,
				White:             match.Participant{Name: ci.Name, Color: rules.White, Result: startFailureResult(errI)},
				Black:             match.Participant{Name: cj.Name, Color: rules.Black, Result: startFailureResult(errJ)},
				TerminationReason: "engine_start_failed",
			}
			s.onCompletion(ctx, t, s.book.Fetch(t.openingID), rec)
			return nil, nil, false
		}
		logw.Warningf(ctx, "Engine start failed, re-enqueuing game %d", t.g)
		s.resubmit(t)
		return nil, nil, false
	}

	white = player.New(ei, ci.Name, rules.White, ci.Limits.Nodes, ci.Limits.Depth, ci.PlayerTimeControl())
	black = player.New(ej, cj.Name, rules.Black, cj.Limits.Nodes, cj.Limits.Depth, cj.PlayerTimeControl())
	return white, black, true
}

// resubmit re-enqueues t from its own goroutine. Submit blocks on the pool's
// unbuffered task channel, and the re-enqueue call always runs on a worker
// goroutine (from runTask or startEngines); with concurrency==1 that worker
// is the only possible receiver, so a direct, same-goroutine Submit would
// deadlock against itself.
func (s *Scheduler) resubmit(t task) {
	go s.pool.Submit(func(ctx context.Context) { s.runTask(ctx, t) })
}

func startFailureResult(err error) player.Result {
	if err != nil {
		return player.Loss
	}
	return player.Win
}

func (s *Scheduler) onCompletion(ctx context.Context, t task, opening book.Opening, rec *match.GameRecord) {
	if s.pgn != nil {
		if err := s.pgn.Append(rec); err != nil {
			logw.Errorf(ctx, "PGN append failed: %v", err)
		}
	}
	s.reporter.GameFinished(rec)
	if rec.TerminationReason == "timeout" {
		s.timeoutCount.Add(1)
	}

	// rec.White/Black already reflect whichever engine played which color
	// for this specific game (colors may have been swapped for g==1).
	whiteName, blackName := rec.White.Name, rec.Black.Name
	key, swapped := canonKey(whiteName, blackName)

	outcomeA := outcomeFromWhite(rec, swapped)
	single := stats.FromSingle(outcomeA)

	groupKey := fmt.Sprintf("%v|%d|%v", key, t.round, opening.FEN)

	s.mu.Lock()
	pairCompleted := false
	// Every completed game contributes its trinomial count, regardless of
	// Games; the pentanomial buckets are an additional fold once a paired
	// (colors-swapped) unit's second half arrives, per spec.md §3's
	// 2*(ww+wd+wl_or_dd+ld+ll) == wins+draws+losses invariant.
	s.statsMap[key] = addStats(s.statsMap[key], single)
	if s.opts.Games == 2 {
		if pend, ok := s.pending[groupKey]; ok {
			delete(s.pending, groupKey)
			pair := stats.Pair(pend.outcome, outcomeA)
			s.statsMap[key] = addStats(s.statsMap[key], pair)
			pairCompleted = true
		} else {
			s.pending[groupKey] = pendingPair{outcome: outcomeA}
		}
	}

	if !s.opts.ReportPenta || pairCompleted {
		// Trinomial-only mode feeds SPRT on every completion; pentanomial
		// mode only once a pair resolves, per spec.md §9's resolved open
		// question (never feed a half-complete pair to SPRT).
		s.foldAndReport(ctx, key, pairCompleted)
	}
	total := s.matchCount.Add(1)
	s.mu.Unlock()

	if s.opts.RatingInterval > 0 && total%uint64(s.opts.RatingInterval) == 0 {
		s.reportAll(ctx)
	}
	if s.snapshotPath != "" && s.opts.AutosaveInterval > 0 && total%uint64(s.opts.AutosaveInterval) == 0 {
		s.autosave(ctx)
	}
}

// addStats returns cur+delta without mutating either argument.
func addStats(cur, delta stats.Stats) stats.Stats {
	cur.Add(delta)
	return cur
}

// foldAndReport runs the SPRT check for key under the statsMap lock held by
// the caller, using pentanomial counts only once pairUsable (a completed
// pair) allows it, per spec.md §9's resolved open question.
func (s *Scheduler) foldAndReport(ctx context.Context, key pairKey, pairUsable bool) {
	if s.sprt == nil || s.stopFlag.Load() {
		return
	}
	st := s.statsMap[key]

	usePenta := s.opts.ReportPenta && pairUsable
	if s.opts.ReportPenta && !pairUsable {
		return // spec.md §9: never feed an incomplete pair to SPRT
	}

	llr := s.sprt.LLR(st, usePenta)
	if d := s.sprt.Decide(llr); d != stats.Continue {
		logw.Infof(ctx, "SPRT stopped for %v: decision=%v llr=%.3f", key, d, llr)
		s.stopFlag.Store(true)
	}
}

func outcomeFromWhite(rec *match.GameRecord, swapped bool) stats.GameOutcome {
	var o stats.GameOutcome
	switch rec.White.Result {
	case player.Win:
		o = stats.WinOutcome
	case player.Loss:
		o = stats.Loss
	default:
		o = stats.DrawOutcome
	}
	if swapped {
		o = invertOutcome(o)
	}
	return o
}

func invertOutcome(o stats.GameOutcome) stats.GameOutcome {
	switch o {
	case stats.WinOutcome:
		return stats.Loss
	case stats.Loss:
		return stats.WinOutcome
	default:
		return stats.DrawOutcome
	}
}

// reportAll prints the interval line for every pair currently tracked.
func (s *Scheduler) reportAll(ctx context.Context) {
	s.mu.Lock()
	keys := make([]pairKey, 0, len(s.statsMap))
	snap := make(map[pairKey]stats.Stats, len(s.statsMap))
	for k, v := range s.statsMap {
		keys = append(keys, k)
		snap[k] = v
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		st := snap[k]
		var llr float64
		if s.sprt != nil {
			llr = s.sprt.LLR(st, s.opts.ReportPenta)
		}
		s.reporter.Interval(k.String(), st, s.sprt, llr)
	}
}

func (s *Scheduler) autosave(ctx context.Context) {
	s.mu.Lock()
	pairs := make(map[string]stats.Stats, len(s.statsMap))
	for k, v := range s.statsMap {
		pairs[k.String()] = v
	}
	matchCount := s.matchCount.Load()
	roundCount := s.roundCount.Load()
	s.mu.Unlock()

	snap := output.Snapshot{MatchCount: matchCount, RoundCount: roundCount, Pairs: pairs}
	if err := output.WriteSnapshot(s.snapshotPath, snap); err != nil {
		logw.Errorf(ctx, "Autosave failed: %v", err)
	}
}

// Final prints the tournament-end summary for every pair.
func (s *Scheduler) Final(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.statsMap {
		s.reporter.Final(k.String(), v)
	}
}

// MatchCount returns the number of completed games so far.
func (s *Scheduler) MatchCount() uint64 { return s.matchCount.Load() }
