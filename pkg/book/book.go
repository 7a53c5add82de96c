// Package book loads an opening book once -- EPD or PGN -- and serves
// positions to the scheduler via a deterministic seeded shuffle and a
// cyclic, atomically-incremented counter.
package book

import (
	"bufio"
	"io"
	"math/rand"
	"strings"

	"go.uber.org/atomic"

	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/xerrors"
)

// Format is the on-disk opening format.
type Format string

const (
	EPD Format = "epd"
	PGN Format = "pgn"
)

// Order controls how entries are consumed.
type Order string

const (
	Sequential Order = "sequential"
	Random     Order = "random"
)

// Opening is a single starting position, per spec.md's data model: a FEN,
// an optional move prefix already played from it, and the side to move
// after that prefix (used by callers to normalize win/loss reporting).
type Opening struct {
	FEN   string
	Moves []string
	STM   rules.Side
}

// Book is a loaded, shuffled (if configured), cyclically-indexed set of openings.
type Book struct {
	entries []Opening
	start   int
	next    atomic.Uint64 // next_id_counter, atomic per spec.md §4.4/§5
}

// LineKind distinguishes a bare FEN/EPD-without-operations line from one
// carrying EPD operation codes, per spec.md §9's heuristic.
type LineKind string

const (
	PlainFEN   LineKind = "plain_fen"   // exactly 6 fields, no ';'
	EPDWithOps LineKind = "epd_withops" // anything else
)

// Classify applies spec.md §9's EPD-vs-FEN heuristic and is exposed for
// independent testability, per spec.md's "best-effort fallback" guidance.
func Classify(line string) LineKind {
	fields := strings.Fields(line)
	if len(fields) == 6 && !strings.Contains(line, ";") {
		return PlainFEN
	}
	return EPDWithOps
}

// Load reads openings from r in the given format, then shuffles them
// deterministically if order == Random. initialMatchCount seeds the cyclic
// counter so interrupted runs resume at the same point in the sequence.
func Load(r io.Reader, format Format, order Order, seed int64, start int, initialMatchCount uint64, rl rules.ChessRules) (*Book, error) {
	var entries []Opening
	var err error

	switch format {
	case EPD:
		entries, err = loadEPD(r)
	case PGN:
		entries, err = loadPGN(r, rl)
	default:
		return nil, xerrors.New(xerrors.Config, "unknown opening format: "+string(format))
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, xerrors.New(xerrors.Config, "opening book is empty")
	}

	if order == Random {
		shuffle(entries, seed)
	}

	b := &Book{entries: entries, start: start}
	b.next.Store(initialMatchCount)
	return b, nil
}

// shuffle performs a deterministic Fisher-Yates shuffle seeded by seed.
func shuffle(entries []Opening, seed int64) {
	rnd := rand.New(rand.NewSource(seed))
	for i := len(entries) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}

func loadEPD(r io.Reader) ([]Opening, error) {
	var out []Opening
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, Opening{FEN: stripOps(line), STM: sideFromFEN(line)})
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.IO, "reading epd", err)
	}
	return out, nil
}

// stripOps drops any EPD operation codes (everything after the 4th field
// that isn't itself part of the 6-field FEN), leaving a usable FEN. EPD's
// halfmove/fullmove counters are optional; default them when absent.
func stripOps(line string) string {
	fields := strings.Fields(line)
	if len(fields) >= 6 {
		core := fields[:4]
		// Some generators omit halfmove/fullmove and start operations at
		// field 5 instead; only treat fields 5/6 as counters if numeric-looking.
		if isUint(fields[4]) && isUint(fields[5]) {
			return strings.Join(fields[:6], " ")
		}
		return strings.Join(core, " ") + " 0 1"
	}
	if len(fields) >= 4 {
		return strings.Join(fields[:4], " ") + " 0 1"
	}
	return line
}

func isUint(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sideFromFEN(line string) rules.Side {
	fields := strings.Fields(line)
	if len(fields) >= 2 && fields[1] == "b" {
		return rules.Black
	}
	return rules.White
}

func loadPGN(r io.Reader, rl rules.ChessRules) ([]Opening, error) {
	// A multi-game PGN file separates games with a single blank line; the
	// notnil/chess decoder consumes exactly one game per Reader, so a new
	// tag-section line ("[Event ...") seen after movetext has started marks
	// the boundary ourselves, rather than relying on blank-line counting.
	var out []Opening
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cur strings.Builder
	sawMovetext := false
	flush := func() error {
		text := strings.TrimSpace(cur.String())
		cur.Reset()
		sawMovetext = false
		if text == "" {
			return nil
		}
		fen, moves, err := rl.ParsePGNMoves(strings.NewReader(text))
		if err != nil {
			return err
		}
		pos, err := rl.NewGame(fen)
		if err != nil {
			return err
		}
		for _, m := range moves {
			next, ok := rl.ApplyMove(pos, m)
			if !ok {
				return xerrors.New(xerrors.Config, "illegal move in opening book pgn: "+m)
			}
			pos = next
		}
		out = append(out, Opening{FEN: fen, Moves: moves, STM: rl.SideToMove(pos)})
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		isTag := strings.HasPrefix(trimmed, "[")
		if isTag && sawMovetext {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if !isTag {
			sawMovetext = true
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.IO, "reading pgn", err)
	}
	return out, nil
}

// Fetch returns the entry at index (start+openingID) mod len, per spec.md §4.4.
func (b *Book) Fetch(openingID uint64) Opening {
	idx := (b.start + int(openingID%uint64(len(b.entries)))) % len(b.entries)
	return b.entries[idx]
}

// NextID atomically returns and post-increments the opening counter.
func (b *Book) NextID() uint64 {
	return b.next.Add(1) - 1
}

// Len returns the number of loaded openings.
func (b *Book) Len() int {
	return len(b.entries)
}
