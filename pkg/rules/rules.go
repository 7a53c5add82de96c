// Package rules defines the ChessRules capability the rest of the driver
// consumes: apply a move, detect game-over, report side to move, check
// legality, and parse/print FEN and PGN. The driver never implements move
// generation itself -- this package's only job is to adapt a real rules
// engine (github.com/notnil/chess) to the narrow contract the state
// machine in pkg/match needs.
package rules

import (
	"fmt"
	"io"
	"strings"

	"github.com/notnil/chess"
)

// Side is the color to move, independent of the notnil/chess type so the
// rest of the driver does not import that package directly.
type Side uint8

const (
	White Side = iota
	Black
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// Result is the outcome of a finished game.
type Result uint8

const (
	Undecided Result = iota
	WhiteWins
	BlackWins
	Draw
)

// Reason is the termination-reason tag recorded on a GameRecord.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonThreefold            Reason = "threefold_repetition"
	ReasonFiftyMove            Reason = "50_move_rule"
)

// StartingFEN is the standard chess starting position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an opaque, immutable board state.
type Position struct {
	game *chess.Game
}

// ChessRules is the capability the match runner and opening book consume.
// Implementations own legal-move generation and game-termination detection;
// the driver has no opinion on how that work is done.
type ChessRules interface {
	// NewGame returns a position for the given FEN, or StartingFEN if fen is empty.
	NewGame(fen string) (*Position, error)
	// ApplyMove plays a UCI move (e.g. "e2e4", "e7e8q") and returns the resulting
	// position. ok is false if the move is illegal in the given position.
	ApplyMove(pos *Position, uciMove string) (next *Position, ok bool)
	// IsLegal reports whether uciMove is legal in pos, without mutating it.
	IsLegal(pos *Position, uciMove string) bool
	// IsGameOver reports whether the position is terminal and why.
	IsGameOver(pos *Position) (Result, Reason)
	// SideToMove returns the color on move in pos.
	SideToMove(pos *Position) Side
	// FEN renders pos in Forsyth-Edwards Notation.
	FEN(pos *Position) string
	// ParsePGNMoves decodes a PGN game's move list (ignoring headers besides
	// [FEN]) into a starting FEN and ordered UCI move list.
	ParsePGNMoves(r io.Reader) (startFEN string, moves []string, err error)
}

// Notnil adapts github.com/notnil/chess to ChessRules. It is the concrete
// rules engine this driver ships with; nothing else in the package imports
// notnil/chess directly.
type Notnil struct{}

var _ ChessRules = Notnil{}

func (Notnil) NewGame(fen string) (*Position, error) {
	if fen == "" {
		return &Position{game: chess.NewGame()}, nil
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid fen %q: %w", fen, err)
	}
	return &Position{game: chess.NewGame(opt)}, nil
}

func (Notnil) ApplyMove(pos *Position, uciMove string) (*Position, bool) {
	g := pos.game.Clone()

	mv, err := chess.UCINotation{}.Decode(g.Position(), uciMove)
	if err != nil {
		return nil, false
	}
	if err := g.Move(mv); err != nil {
		return nil, false
	}
	return &Position{game: g}, true
}

func (n Notnil) IsLegal(pos *Position, uciMove string) bool {
	_, ok := n.ApplyMove(pos, uciMove)
	return ok
}

func (Notnil) IsGameOver(pos *Position) (Result, Reason) {
	switch pos.game.Outcome() {
	case chess.WhiteWon:
		return WhiteWins, methodReason(pos.game.Method())
	case chess.BlackWon:
		return BlackWins, methodReason(pos.game.Method())
	case chess.Draw:
		return Draw, methodReason(pos.game.Method())
	default:
		return Undecided, ReasonNone
	}
}

func methodReason(m chess.Method) Reason {
	switch m {
	case chess.Checkmate:
		return ReasonCheckmate
	case chess.Stalemate:
		return ReasonStalemate
	case chess.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case chess.ThreefoldRepetition:
		return ReasonThreefold
	case chess.FiftyMoveRule:
		return ReasonFiftyMove
	default:
		return ReasonNone
	}
}

func (Notnil) SideToMove(pos *Position) Side {
	if pos.game.Position().Turn() == chess.White {
		return White
	}
	return Black
}

func (Notnil) FEN(pos *Position) string {
	return pos.game.Position().String()
}

func (Notnil) ParsePGNMoves(r io.Reader) (string, []string, error) {
	opt, err := chess.PGN(r)
	if err != nil {
		return "", nil, fmt.Errorf("invalid pgn: %w", err)
	}

	g := chess.NewGame(opt)

	startFEN := StartingFEN
	if tags := g.TagPairs(); tags != nil {
		for _, t := range tags {
			if strings.EqualFold(t.Key, "FEN") {
				startFEN = t.Value
			}
		}
	}

	start, err := chess.FEN(startFEN)
	if err != nil {
		return "", nil, err
	}
	replay := chess.NewGame(start)

	var moves []string
	for _, mv := range g.Moves() {
		moves = append(moves, chess.UCINotation{}.Encode(replay.Position(), mv))
		if err := replay.Move(mv); err != nil {
			return "", nil, fmt.Errorf("replay move %v: %w", mv, err)
		}
	}

	return startFEN, moves, nil
}
