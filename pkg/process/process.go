// Package process pipes text to and from a child process with strict
// timeout semantics and clean teardown. It never blocks indefinitely on a
// read unless explicitly asked to (timeout == 0); every other path takes a
// deadline.
package process

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/seekerror/logw"
	"go.uber.org/atomic"

	"github.com/herohde/gauntlet/pkg/xerrors"
)

const killGrace = time.Second

// Pipe spawns a child process and exposes line-buffered stdin/stdout. It
// transitions to a terminal Broken state on any I/O failure after start;
// from Broken, only Terminate is valid.
type Pipe struct {
	name string
	cmd  *exec.Cmd

	stdin  stdinWriter
	lines  chan string
	reader chan struct{} // closed when the reader goroutine exits

	broken atomic.Bool
	mu     sync.Mutex
}

type stdinWriter interface {
	Write(p []byte) (int, error)
	Close() error
}

// New constructs an unstarted Pipe identified by name (for logging).
func New(name string) *Pipe {
	return &Pipe{name: name}
}

// Start spawns the child with cwd as its working directory (empty means
// inherit). Fails with a Start-kind error if the binary cannot be launched.
func (p *Pipe) Start(ctx context.Context, command []string, cwd string) error {
	if len(command) == 0 {
		return xerrors.New(xerrors.Start, "empty command")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = cwd

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return xerrors.Wrap(xerrors.Start, "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return xerrors.Wrap(xerrors.Start, "stdout pipe", err)
	}
	cmd.Stderr = os.Stderr // inherited so a crashing engine's diagnostics aren't lost

	if err := cmd.Start(); err != nil {
		return xerrors.Wrap(xerrors.Start, fmt.Sprintf("start %v", command), err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.lines = make(chan string, 256)
	p.reader = make(chan struct{})

	go p.readLoop(ctx, stdout)

	logw.Infof(ctx, "[%v] started: %v", p.name, strings.Join(command, " "))
	return nil
}

func (p *Pipe) readLoop(ctx context.Context, stdout interface {
	Read(p []byte) (int, error)
}) {
	defer close(p.reader)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := normalize(scanner.Text())
		select {
		case p.lines <- line:
		default:
			// Slow consumer: drop the oldest buffered line rather than block
			// the reader and risk missing a sentinel (e.g. uciok) forever.
			select {
			case <-p.lines:
			default:
			}
			p.lines <- line
		}
	}

	p.broken.Store(true)
	logw.Debugf(ctx, "[%v] stdout closed", p.name)
}

func normalize(line string) string {
	return strings.TrimRight(strings.TrimSpace(line), "\r\n")
}

// Write sends line to the child's stdin, appending a newline if absent.
func (p *Pipe) Write(line string) error {
	if p.broken.Load() {
		return xerrors.New(xerrors.PipeBroken, "write on broken pipe")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := p.stdin.Write([]byte(line)); err != nil {
		p.broken.Store(true)
		return xerrors.Wrap(xerrors.PipeBroken, "write", err)
	}
	return nil
}

// ReadUntil reads lines until one whose first whitespace-tokenized field
// equals sentinel, or until timeout elapses (0 means wait indefinitely).
// It returns every line read, in order, including the sentinel line, and
// whether the deadline was hit before the sentinel arrived.
func (p *Pipe) ReadUntil(sentinel string, timeout time.Duration) ([]string, bool) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var lines []string
	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return lines, false
			}
			lines = append(lines, line)
			if firstToken(line) == sentinel {
				return lines, false
			}
		case <-deadline:
			return lines, true
		case <-p.reader:
			// Reader goroutine exited (pipe broken); drain anything buffered,
			// then report whatever we have without waiting further.
			for {
				select {
				case line := <-p.lines:
					lines = append(lines, line)
					if firstToken(line) == sentinel {
						return lines, false
					}
				default:
					return lines, false
				}
			}
		}
	}
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsAlive reports whether the child has not exited, via a non-blocking check.
func (p *Pipe) IsAlive() bool {
	if p.cmd == nil || p.cmd.Process == nil {
		return false
	}
	if p.broken.Load() {
		return false
	}
	// A zero-wait signal probe: ESRCH/EPERM indicate the process is gone.
	err := p.cmd.Process.Signal(syscall.Signal(0))
	return err == nil
}

// Terminate sends SIGTERM, waits up to killGrace, then force-kills. Always
// reaps the child. Idempotent.
func (p *Pipe) Terminate() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}

	p.mu.Lock()
	_ = p.stdin.Close()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()

	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(killGrace):
		_ = p.cmd.Process.Kill()
		<-done
	}

	p.broken.Store(true)
}

// Broken reports whether the pipe has entered its terminal failure state.
func (p *Pipe) Broken() bool {
	return p.broken.Load()
}
