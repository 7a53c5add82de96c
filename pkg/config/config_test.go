package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herohde/gauntlet/pkg/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Engines: []config.EngineConfig{
			{Name: "a", Command: []string{"enginea"}},
			{Name: "b", Command: []string{"engineb"}},
		},
		Tournament: config.TournamentOptions{
			Concurrency: 1,
			Rounds:      1,
			Games:       1,
		},
	}
}

func TestValidateAcceptsMinimalValidConfig(t *testing.T) {
	c := validConfig()
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsFewerThanTwoEngines(t *testing.T) {
	c := validConfig()
	c.Engines = c.Engines[:1]
	assert.Error(t, c.Validate())
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	c := validConfig()
	c.Engines[1].Name = c.Engines[0].Name
	assert.Error(t, c.Validate())
}

func TestValidateRejectsEmptyCommand(t *testing.T) {
	c := validConfig()
	c.Engines[0].Command = nil
	assert.Error(t, c.Validate())
}

func TestValidateRejectsFixedTimeAndTimeMsTogether(t *testing.T) {
	c := validConfig()
	c.Engines[0].Limits.TC = config.TimeControl{FixedTimeMs: 100, TimeMs: 1000}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsZeroConcurrency(t *testing.T) {
	c := validConfig()
	c.Tournament.Concurrency = 0
	assert.Error(t, c.Validate())
}

func TestValidateRepeatAliasSetsGamesToTwo(t *testing.T) {
	c := validConfig()
	c.Tournament.Games = 0
	c.Tournament.Repeat = true
	require.NoError(t, c.Validate())
	assert.Equal(t, 2, c.Tournament.Games)
}

func TestValidateRejectsInvalidGamesCount(t *testing.T) {
	c := validConfig()
	c.Tournament.Games = 3
	assert.Error(t, c.Validate())
}

func TestValidateSprtRequiresKnownModel(t *testing.T) {
	c := validConfig()
	c.Tournament.Sprt.Enabled = true
	c.Tournament.Sprt.Alpha, c.Tournament.Sprt.Beta = 0.05, 0.05
	c.Tournament.Sprt.Model = "bogus"
	assert.Error(t, c.Validate())
}

func TestValidateSprtRequiresAlphaBetaInRange(t *testing.T) {
	c := validConfig()
	c.Tournament.Sprt.Enabled = true
	c.Tournament.Sprt.Model = "normalized"
	c.Tournament.Sprt.Alpha = 1.5
	c.Tournament.Sprt.Beta = 0.05
	assert.Error(t, c.Validate())
}

func TestValidateOpeningFormatMustBeKnownWhenFileSet(t *testing.T) {
	c := validConfig()
	c.Tournament.Opening.File = "book.epd"
	c.Tournament.Opening.Format = "bogus"
	assert.Error(t, c.Validate())
}

func TestLoadReadsAndValidatesYAML(t *testing.T) {
	yaml := `
engines:
  - name: a
    command: ["enginea"]
  - name: b
    command: ["engineb"]
tournament:
  concurrency: 2
  rounds: 5
  games: 2
`
	dir := t.TempDir()
	path := filepath.Join(dir, "gauntlet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Engines, 2)
	assert.Equal(t, 5, c.Tournament.Rounds)
	assert.Equal(t, 2, c.Tournament.Games)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPlayerTimeControlConversion(t *testing.T) {
	ec := config.EngineConfig{Limits: config.Limits{TC: config.TimeControl{TimeMs: 60000, IncrementMs: 500}}}
	tc := ec.PlayerTimeControl()
	assert.Equal(t, uint64(60000), tc.TimeMs)
	assert.Equal(t, uint64(500), tc.IncrementMs)
}

func TestDrawAndResignConfigConversion(t *testing.T) {
	to := config.TournamentOptions{
		Draw:   config.DrawOptions{Enabled: true, MoveNumber: 40, MoveCount: 8, Score: 10},
		Resign: config.ResignOptions{Enabled: true, MoveCount: 3, Score: 600},
	}
	dc := to.DrawConfig()
	assert.True(t, dc.Enabled)
	assert.Equal(t, 40, dc.MoveNumber)
	assert.Equal(t, 8, dc.MoveCount)
	assert.Equal(t, 10, dc.ScoreCP)

	rc := to.ResignConfig()
	assert.True(t, rc.Enabled)
	assert.Equal(t, 3, rc.MoveCount)
	assert.Equal(t, 600, rc.ScoreCP)
}
