package output_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herohde/gauntlet/pkg/match"
	"github.com/herohde/gauntlet/pkg/output"
	"github.com/herohde/gauntlet/pkg/player"
	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/stats"
)

func sampleRecord() *match.GameRecord {
	return &match.GameRecord{
		RoundID: 2, GameID: 5,
		StartFEN:          rules.StartingFEN,
		White:             match.Participant{Name: "engineA", Color: rules.White, Result: player.Win},
		Black:             match.Participant{Name: "engineB", Color: rules.Black, Result: player.Loss},
		TerminationReason: "checkmate",
		Moves: []match.MoveRecord{
			{Move: "e2e4", Legal: true},
			{Move: "e7e5", Legal: true},
		},
	}
}

func TestConsoleReporterGameFinished(t *testing.T) {
	var buf bytes.Buffer
	r := output.NewConsoleReporter(&buf)
	r.GameFinished(sampleRecord())

	assert.Equal(t, "Finished game 5 (engineA vs engineB): 1-0 {checkmate}\n", buf.String())
}

func TestConsoleReporterIntervalWithoutSprt(t *testing.T) {
	var buf bytes.Buffer
	r := output.NewConsoleReporter(&buf)
	r.Interval("engineA-engineB", stats.Stats{Wins: 1, Draws: 1, Losses: 0}, nil, 0)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "engineA-engineB: n=2"))
	assert.NotContains(t, out, "llr=")
}

func TestConsoleReporterIntervalWithSprt(t *testing.T) {
	var buf bytes.Buffer
	r := output.NewConsoleReporter(&buf)
	sprt := stats.New(0.05, 0.05, 0, 5, stats.Normalized)
	r.Interval("engineA-engineB", stats.Stats{Wins: 200, Draws: 600, Losses: 100}, sprt, 4.2)

	assert.Contains(t, buf.String(), "llr=4.200")
}

func TestConsoleReporterFinal(t *testing.T) {
	var buf bytes.Buffer
	r := output.NewConsoleReporter(&buf)
	r.Final("engineA-engineB", stats.Stats{Wins: 3, Draws: 1, Losses: 2})

	assert.Contains(t, buf.String(), "Final engineA-engineB:")
}

func TestPGNWriterAppendAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pgn")
	w, err := output.OpenPGNWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(sampleRecord()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "[White \"engineA\"]")
	assert.Contains(t, text, "[Black \"engineB\"]")
	assert.Contains(t, text, "[Result \"1-0\"]")
	assert.Contains(t, text, "1. e2e4 e7e5")
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	snap := output.Snapshot{
		MatchCount: 42,
		RoundCount: 3,
		Pairs: map[string]stats.Stats{
			"engineA-engineB": {Wins: 5, Draws: 2, Losses: 1},
		},
	}
	require.NoError(t, output.WriteSnapshot(path, snap))

	loaded, err := output.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestLoadSnapshotMissingFileErrors(t *testing.T) {
	_, err := output.LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
