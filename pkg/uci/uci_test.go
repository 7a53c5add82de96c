package uci_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/uci"
)

// fakeEngine is a minimal shell-scripted UCI responder: enough of the
// handshake and search loop to exercise Engine without a real binary.
const fakeEngine = `while read -r line; do
  case "$line" in
    uci) echo "id name fake"; echo uciok ;;
    isready) echo readyok ;;
    go*) echo "info depth 4 score cp 17 nodes 1000"; echo "bestmove e2e4" ;;
    quit) exit 0 ;;
  esac
done`

func startFake(t *testing.T) *uci.Engine {
	t.Helper()
	e := uci.New("fake", 2*time.Second, map[string]string{"Hash": "16"}, []string{"Hash"})
	require.NoError(t, e.Start(context.Background(), []string{"sh", "-c", fakeEngine}, ""))
	return e
}

func TestStartHandshake(t *testing.T) {
	e := startFake(t)
	defer e.Quit()

	assert.Equal(t, uci.Ready, e.State())
}

func TestPingReturnsTrueWhenReady(t *testing.T) {
	e := startFake(t)
	defer e.Quit()

	assert.True(t, e.Ping(context.Background()))
}

func TestGoAndReadBestMove(t *testing.T) {
	e := startFake(t)
	defer e.Quit()

	require.NoError(t, e.Position(rules.StartingFEN, nil))
	timeout, err := e.Go(rules.White, uci.Limits{Depth: 4}, 0, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), timeout) // depth-based limit is not clock-based

	move, timedOut, err := e.ReadBestMove(2 * time.Second)
	require.NoError(t, err)
	assert.False(t, timedOut)
	assert.Equal(t, "e2e4", move)

	info := e.LastInfo()
	assert.Equal(t, 4, info.Depth)
	assert.Equal(t, 17, info.ScoreCP)
	assert.False(t, info.IsMate)
}

func TestLimitsIsClockBased(t *testing.T) {
	assert.True(t, uci.Limits{}.IsClockBased())
	assert.False(t, uci.Limits{Nodes: 1000}.IsClockBased())
	assert.False(t, uci.Limits{Depth: 5}.IsClockBased())
	assert.False(t, uci.Limits{FixedTimeMs: 100}.IsClockBased())
}

func TestStartFailsOnBadCommand(t *testing.T) {
	e := uci.New("missing", time.Second, nil, nil)
	err := e.Start(context.Background(), []string{"/nonexistent/path/to/engine"}, "")
	assert.Error(t, err)
	assert.Equal(t, uci.Broken, e.State())
}

func TestReadBestMoveTimesOutWithoutGo(t *testing.T) {
	e := startFake(t)
	defer e.Quit()

	_, timedOut, err := e.ReadBestMove(50 * time.Millisecond)
	assert.True(t, timedOut)
	assert.Error(t, err)
}
