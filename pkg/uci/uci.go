// Package uci wraps pkg/process with knowledge of the UCI protocol. Unlike
// a chess engine's own UCI driver (which answers these commands), this is
// the GUI/driver side: it issues them to a spawned engine and parses the
// responses.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
package uci

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seekerror/logw"
	"go.uber.org/atomic"

	"github.com/herohde/gauntlet/pkg/process"
	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/xerrors"
)

// State is a UciEngine's protocol state.
type State int32

const (
	NotStarted State = iota
	Initializing
	Ready
	Searching
	TimedOut
	Broken
	Exited
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Searching:
		return "searching"
	case TimedOut:
		return "timed_out"
	case Broken:
		return "broken"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

const handshakeTimeout = 60 * time.Second

// Limits bounds a single search, per spec.md's go-command construction rules.
// Exactly the fields that are set are honored, in priority order: Nodes,
// then Depth, then FixedTimeMs, else clock-based (WTime/BTime).
type Limits struct {
	Nodes       uint64
	Depth       uint32
	FixedTimeMs uint64
	MovesToGo   uint32 // 0 == sudden death
}

// IsClockBased reports whether the limits require clock (wtime/btime) search.
func (l Limits) IsClockBased() bool {
	return l.Nodes == 0 && l.Depth == 0 && l.FixedTimeMs == 0
}

// Info is the most recently parsed "info" line.
type Info struct {
	Depth, SelDepth int
	Nodes           uint64
	ScoreCP         int
	ScoreMate       int
	IsMate          bool
}

// Engine drives a single spawned process through the UCI protocol.
type Engine struct {
	name    string
	pingMs  time.Duration
	options []option // setoption commands, in configured order

	pipe  *process.Pipe
	state atomic.Int32

	lastBestMove string
	lastInfo     Info
}

type option struct {
	name, value string
}

// New constructs an engine wrapper. pingMs bounds isready/readyok probes.
// Options named in order are sent first, in that order; any remaining
// options follow in name order.
func New(name string, pingMs time.Duration, options map[string]string, order []string) *Engine {
	e := &Engine{name: name, pingMs: pingMs, pipe: process.New(name)}
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
		e.options = append(e.options, option{name: k, value: options[k]})
	}
	var rest []string
	for k := range options {
		if !listed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		e.options = append(e.options, option{name: k, value: options[k]})
	}
	e.state.Store(int32(NotStarted))
	return e
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start spawns the process and performs the uci/uciok, setoption,
// isready/readyok handshake. Transitions to Broken on any timeout or I/O error.
func (e *Engine) Start(ctx context.Context, command []string, cwd string) error {
	e.state.Store(int32(Initializing))

	if err := e.pipe.Start(ctx, command, cwd); err != nil {
		e.state.Store(int32(Broken))
		return err
	}

	if err := e.pipe.Write("uci"); err != nil {
		e.state.Store(int32(Broken))
		return err
	}
	if _, timedOut := e.pipe.ReadUntil("uciok", handshakeTimeout); timedOut {
		e.state.Store(int32(Broken))
		return xerrors.New(xerrors.Handshake, fmt.Sprintf("%v: no uciok within %v", e.name, handshakeTimeout))
	}

	for _, opt := range e.options {
		cmd := fmt.Sprintf("setoption name %v value %v", opt.name, opt.value)
		if err := e.pipe.Write(cmd); err != nil {
			e.state.Store(int32(Broken))
			return err
		}
	}

	if !e.probeReady(ctx, handshakeTimeout) {
		e.state.Store(int32(Broken))
		return xerrors.New(xerrors.Handshake, fmt.Sprintf("%v: no readyok within %v", e.name, handshakeTimeout))
	}

	e.state.Store(int32(Ready))
	logw.Infof(ctx, "[%v] UCI handshake complete", e.name)
	return nil
}

func (e *Engine) probeReady(ctx context.Context, timeout time.Duration) bool {
	if err := e.pipe.Write("isready"); err != nil {
		return false
	}
	_, timedOut := e.pipe.ReadUntil("readyok", timeout)
	return !timedOut
}

// NewGame sends ucinewgame followed by an isready/readyok probe.
func (e *Engine) NewGame(ctx context.Context) bool {
	if err := e.pipe.Write("ucinewgame"); err != nil {
		e.state.Store(int32(Broken))
		return false
	}
	if !e.probeReady(ctx, e.pingMs) {
		e.state.Store(int32(Broken))
		return false
	}
	return true
}

// Ping runs the responsiveness probe used before every move request.
func (e *Engine) Ping(ctx context.Context) bool {
	return e.probeReady(ctx, e.pingMs)
}

// Position sends "position startpos|fen ... [moves ...]".
func (e *Engine) Position(startFEN string, moves []string) error {
	var b strings.Builder
	b.WriteString("position ")
	if startFEN == "" || startFEN == rules.StartingFEN {
		b.WriteString("startpos")
	} else {
		b.WriteString("fen ")
		b.WriteString(startFEN)
	}
	if len(moves) > 0 {
		b.WriteString(" moves ")
		b.WriteString(strings.Join(moves, " "))
	}
	return e.pipe.Write(b.String())
}

// Go composes and sends a go command for the given side to move, with the
// current remaining clock in milliseconds (only meaningful for clock-based
// limits). Returns the read timeout to use for the subsequent bestmove wait.
func (e *Engine) Go(stm rules.Side, lim Limits, remainingOwnMs, remainingOppMs uint64, incOwnMs, incOppMs uint64, marginMs uint64) (time.Duration, error) {
	var b strings.Builder
	b.WriteString("go")

	switch {
	case lim.Nodes > 0:
		fmt.Fprintf(&b, " nodes %d", lim.Nodes)
	case lim.Depth > 0:
		fmt.Fprintf(&b, " depth %d", lim.Depth)
	case lim.FixedTimeMs > 0:
		fmt.Fprintf(&b, " movetime %d", lim.FixedTimeMs)
	default:
		wtime, btime := remainingOwnMs, remainingOppMs
		winc, binc := incOwnMs, incOppMs
		if stm == rules.Black {
			wtime, btime = remainingOppMs, remainingOwnMs
			winc, binc = incOppMs, incOwnMs
		}
		fmt.Fprintf(&b, " wtime %d btime %d", wtime, btime)
		if winc > 0 || binc > 0 {
			fmt.Fprintf(&b, " winc %d binc %d", winc, binc)
		}
		if lim.MovesToGo > 0 {
			fmt.Fprintf(&b, " movestogo %d", lim.MovesToGo)
		}
	}

	e.state.Store(int32(Searching))

	timeout := time.Duration(0)
	if lim.IsClockBased() {
		timeout = time.Duration(remainingOwnMs+marginMs) * time.Millisecond
	}
	return timeout, e.pipe.Write(b.String())
}

// ReadBestMove waits (bounded by timeout, or indefinitely if zero) for the
// "bestmove" response and returns the chosen move token. It also caches the
// last "info" line seen along the way.
func (e *Engine) ReadBestMove(timeout time.Duration) (move string, timedOut bool, err error) {
	lines, timedOut := e.pipe.ReadUntil("bestmove", timeout)
	for _, line := range lines {
		if strings.HasPrefix(line, "info") {
			e.lastInfo = parseInfo(line)
		}
	}

	if timedOut {
		e.state.Store(int32(TimedOut))
		return "", true, xerrors.New(xerrors.Timeout, fmt.Sprintf("%v: bestmove not received", e.name))
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "bestmove") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				e.state.Store(int32(Broken))
				return "", false, xerrors.New(xerrors.Protocol, fmt.Sprintf("%v: malformed bestmove line %q", e.name, line))
			}
			e.lastBestMove = fields[1]
			e.state.Store(int32(Ready))
			return fields[1], false, nil
		}
	}

	e.state.Store(int32(Broken))
	if e.pipe.Broken() {
		return "", false, xerrors.New(xerrors.PipeBroken, fmt.Sprintf("%v: engine exited before bestmove", e.name))
	}
	return "", false, xerrors.New(xerrors.Protocol, fmt.Sprintf("%v: no bestmove line", e.name))
}

// LastInfo returns the most recently parsed "info" line's fields.
func (e *Engine) LastInfo() Info {
	return e.lastInfo
}

func parseInfo(line string) Info {
	var info Info
	fields := strings.Fields(line)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			i++
			if i < len(fields) {
				info.Depth, _ = strconv.Atoi(fields[i])
			}
		case "seldepth":
			i++
			if i < len(fields) {
				info.SelDepth, _ = strconv.Atoi(fields[i])
			}
		case "nodes":
			i++
			if i < len(fields) {
				n, _ := strconv.ParseUint(fields[i], 10, 64)
				info.Nodes = n
			}
		case "score":
			if i+2 < len(fields) {
				switch fields[i+1] {
				case "cp":
					info.ScoreCP, _ = strconv.Atoi(fields[i+2])
					info.IsMate = false
				case "mate":
					info.ScoreMate, _ = strconv.Atoi(fields[i+2])
					info.IsMate = true
				}
				i += 2
			}
		}
	}
	return info
}

// Quit sends "quit" best-effort and terminates the subprocess.
func (e *Engine) Quit() {
	_ = e.pipe.Write("quit")
	e.pipe.Terminate()
	e.state.Store(int32(Exited))
}

// Alive reports whether the underlying process is still running.
func (e *Engine) Alive() bool {
	return e.pipe.IsAlive() && !e.pipe.Broken()
}
