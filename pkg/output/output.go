// Package output implements the capability spec.md §9 calls "virtual
// dispatch output": per-game and interval reporting lines, a PGN
// append-writer, and a JSON stats snapshot, all chosen by config and
// injected into the scheduler at construction rather than hard-wired.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/herohde/gauntlet/pkg/match"
	"github.com/herohde/gauntlet/pkg/stats"
)

// Reporter is the capability the scheduler holds for user-visible output.
// Implementations are swappable (e.g. a test double that records lines).
type Reporter interface {
	GameFinished(rec *match.GameRecord)
	Interval(pairName string, s stats.Stats, sprt *stats.Sprt, llr float64)
	Final(pairName string, s stats.Stats)
}

// ConsoleReporter writes spec.md §7's exact line shapes to w.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

// GameFinished prints "Finished game <id> (A vs B): <score> {<reason>}".
func (r *ConsoleReporter) GameFinished(rec *match.GameRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "Finished game %d (%v vs %v): %v {%v}\n",
		rec.GameID, rec.White.Name, rec.Black.Name, scoreString(rec), rec.TerminationReason)
}

func scoreString(rec *match.GameRecord) string {
	switch {
	case rec.White.Result.String() == "win":
		return "1-0"
	case rec.Black.Result.String() == "win":
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

// Interval prints Elo difference, LOS, draw ratio, and (when sprt != nil)
// the SPRT LLR against its bounds.
func (r *ConsoleReporter) Interval(pairName string, s stats.Stats, sprt *stats.Sprt, llr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := s.Wins + s.Losses + s.Draws
	score := 0.0
	if n > 0 {
		score = (float64(s.Wins) + 0.5*float64(s.Draws)) / float64(n)
	}
	elo := stats.ScoreToElo(score)
	drawRatio := 0.0
	if n > 0 {
		drawRatio = float64(s.Draws) / float64(n)
	}
	// Likelihood of superiority from decisive games only.
	los := 0.5
	if decisive := float64(s.Wins + s.Losses); decisive > 0 {
		los = 0.5 * (1 + math.Erf((float64(s.Wins)-float64(s.Losses))/math.Sqrt(2*decisive)))
	}

	fmt.Fprintf(r.w, "%v: n=%d elo=%.1f los=%.1f%% draw_ratio=%.3f %v", pairName, n, elo, 100*los, drawRatio, s)
	if sprt != nil {
		fmt.Fprintf(r.w, " llr=%.3f [%.3f, %.3f]", llr, sprt.Lower, sprt.Upper)
	}
	fmt.Fprintln(r.w)
}

// Final prints the tournament summary line.
func (r *ConsoleReporter) Final(pairName string, s stats.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "Final %v: %v\n", pairName, s)
}

// PGNWriter appends finished games to a PGN file. All writes are
// serialized by a dedicated mutex, per spec.md §5.
type PGNWriter struct {
	mu sync.Mutex
	f  *os.File
}

func OpenPGNWriter(path string) (*PGNWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &PGNWriter{f: f}, nil
}

func (w *PGNWriter) Append(rec *match.GameRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "[Event \"?\"]\n[Round \"%d\"]\n[White \"%v\"]\n[Black \"%v\"]\n[Result \"%v\"]\n[FEN \"%v\"]\n[Termination \"%v\"]\n\n",
		rec.RoundID, rec.White.Name, rec.Black.Name, scoreString(rec), rec.StartFEN, rec.TerminationReason)
	for i, m := range rec.Moves {
		if i > 0 && i%2 == 0 {
			b.WriteString(" ")
		}
		if i%2 == 0 {
			fmt.Fprintf(&b, "%d. ", i/2+1)
		}
		fmt.Fprintf(&b, "%v ", m.Move)
	}
	b.WriteString(scoreString(rec))
	b.WriteString("\n\n")

	_, err := w.f.WriteString(b.String())
	return err
}

func (w *PGNWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Snapshot is the JSON-serializable form of the stats map, persisted
// periodically per spec.md §4.7's autosave.
type Snapshot struct {
	MatchCount uint64                 `json:"match_count"`
	RoundCount uint64                 `json:"round_count"`
	Pairs      map[string]stats.Stats `json:"pairs"`
}

// WriteSnapshot atomically replaces path with a JSON encoding of snap:
// write to a temp file, then rename, so a crash mid-write never corrupts
// the prior snapshot.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a previously written snapshot, for resuming an
// interrupted run.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(data, &snap)
	return snap, err
}
