// Package stats accumulates trinomial and pentanomial game-pair counts and
// computes a sequential probability ratio test (SPRT) log-likelihood on
// each completion, per spec.md §4.6.
package stats

import "fmt"

// Stats holds one unordered engine pair's accumulated results, always from
// the canonical (lexicographically-first) engine's point of view.
type Stats struct {
	Wins, Losses, Draws uint64

	// Pentanomial buckets, for paired (games=2, colors swapped) play.
	WW, WD, WLorDD, LD, LL uint64
}

// Add accumulates o into s (trinomial and pentanomial components).
func (s *Stats) Add(o Stats) {
	s.Wins += o.Wins
	s.Losses += o.Losses
	s.Draws += o.Draws
	s.WW += o.WW
	s.WD += o.WD
	s.WLorDD += o.WLorDD
	s.LD += o.LD
	s.LL += o.LL
}

// Negate returns the involutive mirror of s: wins/losses swap, and the
// pentanomial buckets mirror (ww<->ll, wd<->ld), used when folding a (B,A)
// completion into the canonical (A,B) entry.
func (s Stats) Negate() Stats {
	return Stats{
		Wins:   s.Losses,
		Losses: s.Wins,
		Draws:  s.Draws,
		WW:     s.LL,
		WD:     s.LD,
		WLorDD: s.WLorDD,
		LD:     s.WD,
		LL:     s.WW,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("+%d -%d =%d [ww=%d wd=%d wl/dd=%d ld=%d ll=%d]",
		s.Wins, s.Losses, s.Draws, s.WW, s.WD, s.WLorDD, s.LD, s.LL)
}

// GameOutcome is one game's result from a fixed reference engine's POV.
type GameOutcome int

const (
	Loss GameOutcome = iota
	DrawOutcome
	WinOutcome
)

// Pair folds a two-game (colors-swapped) result pair into pentanomial
// buckets, per spec.md §4.6's derivation table.
func Pair(r1, r2 GameOutcome) Stats {
	s := Stats{}
	switch {
	case r1 == WinOutcome && r2 == WinOutcome:
		s.WW = 1
	case (r1 == WinOutcome && r2 == DrawOutcome) || (r1 == DrawOutcome && r2 == WinOutcome):
		s.WD = 1
	case (r1 == WinOutcome && r2 == Loss) || (r1 == Loss && r2 == WinOutcome) || (r1 == DrawOutcome && r2 == DrawOutcome):
		s.WLorDD = 1
	case (r1 == Loss && r2 == DrawOutcome) || (r1 == DrawOutcome && r2 == Loss):
		s.LD = 1
	case r1 == Loss && r2 == Loss:
		s.LL = 1
	}
	return s
}

// FromSingle converts one game's outcome into trinomial counts.
func FromSingle(r GameOutcome) Stats {
	switch r {
	case WinOutcome:
		return Stats{Wins: 1}
	case Loss:
		return Stats{Losses: 1}
	default:
		return Stats{Draws: 1}
	}
}

// PentaTotal returns 2*(ww+wd+wl_or_dd+ld+ll), which spec.md §3/§8 requires
// to equal wins+draws+losses once every paired game has both halves complete.
func (s Stats) PentaTotal() uint64 {
	return 2 * (s.WW + s.WD + s.WLorDD + s.LD + s.LL)
}
