// Package config loads and validates the tournament's engine list and
// options, per spec.md §6. Engines and options are ordinarily loaded from
// a YAML file; CLI flags wired in cmd/gauntlet can override four
// TournamentOptions fields: concurrency, rounds, pgn_out and stats_out.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/herohde/gauntlet/pkg/book"
	"github.com/herohde/gauntlet/pkg/match"
	"github.com/herohde/gauntlet/pkg/player"
	"github.com/herohde/gauntlet/pkg/stats"
	"github.com/herohde/gauntlet/pkg/xerrors"
)

// Variant selects the chess rule set.
type Variant string

const (
	Standard Variant = "standard"
	FRC      Variant = "frc"
)

// TimeControl mirrors player.TimeControl with YAML tags for file loading.
type TimeControl struct {
	Moves        uint32 `yaml:"moves"`
	TimeMs       uint64 `yaml:"time_ms"`
	IncrementMs  uint64 `yaml:"increment_ms"`
	TimeMarginMs uint64 `yaml:"timemargin_ms"`
	FixedTimeMs  uint64 `yaml:"fixed_time_ms"`
}

func (tc TimeControl) toPlayer() player.TimeControl {
	return player.TimeControl{
		Moves: tc.Moves, TimeMs: tc.TimeMs, IncrementMs: tc.IncrementMs,
		TimeMarginMs: tc.TimeMarginMs, FixedTimeMs: tc.FixedTimeMs,
	}
}

// Limits mirrors spec.md's EngineConfiguration.limits.
type Limits struct {
	Nodes uint64      `yaml:"nodes"`
	Depth uint32      `yaml:"depth"`
	TC    TimeControl `yaml:"tc"`
}

// EngineConfig is one engine's immutable, shared configuration.
type EngineConfig struct {
	Name       string            `yaml:"name"`
	Command    []string          `yaml:"command"`
	WorkingDir string            `yaml:"working_dir"`
	Options    map[string]string `yaml:"options"`
	// OptionOrder preserves the setoption send order; derived at load time
	// from the YAML mapping's declared order isn't possible with map[string]string,
	// so configs that care about order list it explicitly.
	OptionOrder []string `yaml:"option_order"`
	Limits      Limits   `yaml:"limits"`
	Recover     bool     `yaml:"recover"`
	PingMs      uint64   `yaml:"ping_ms"`
}

// DrawOptions mirrors spec.md §6's draw.* options.
type DrawOptions struct {
	Enabled    bool `yaml:"enabled"`
	MoveNumber int  `yaml:"move_number"`
	MoveCount  int  `yaml:"move_count"`
	Score      int  `yaml:"score"`
}

// ResignOptions mirrors spec.md §6's resign.* options.
type ResignOptions struct {
	Enabled   bool `yaml:"enabled"`
	MoveCount int  `yaml:"move_count"`
	Score     int  `yaml:"score"`
}

// SprtOptions mirrors spec.md §6's sprt.* options.
type SprtOptions struct {
	Enabled bool        `yaml:"enabled"`
	Alpha   float64     `yaml:"alpha"`
	Beta    float64     `yaml:"beta"`
	Elo0    float64     `yaml:"elo0"`
	Elo1    float64     `yaml:"elo1"`
	Model   stats.Model `yaml:"model"`
}

// OpeningOptions mirrors spec.md §6's opening.* options.
type OpeningOptions struct {
	File   string      `yaml:"file"`
	Format book.Format `yaml:"format"`
	Order  book.Order  `yaml:"order"`
	Start  int         `yaml:"start"`
}

// TournamentOptions mirrors spec.md §6's CLI surface.
type TournamentOptions struct {
	Concurrency      int     `yaml:"concurrency"`
	Rounds           int     `yaml:"rounds"`
	Games            int     `yaml:"games"`  // 1 or 2
	Repeat           bool    `yaml:"repeat"` // legacy alias for games=2
	Recover          bool    `yaml:"recover"`
	ReportPenta      bool    `yaml:"report_penta"`
	RatingInterval   int     `yaml:"ratinginterval"`
	ScoreInterval    int     `yaml:"scoreinterval"`
	AutosaveInterval int     `yaml:"autosaveinterval"`
	Seed             int64   `yaml:"seed"`
	Variant          Variant `yaml:"variant"`

	Opening OpeningOptions `yaml:"opening"`
	Draw    DrawOptions    `yaml:"draw"`
	Resign  ResignOptions  `yaml:"resign"`
	Sprt    SprtOptions    `yaml:"sprt"`

	PGNOut   string `yaml:"pgn_out"`
	StatsOut string `yaml:"stats_out"`
}

// Config is the top-level file: an engine list plus tournament options.
type Config struct {
	Engines    []EngineConfig    `yaml:"engines"`
	Tournament TournamentOptions `yaml:"tournament"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Config, "reading config file", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, xerrors.Wrap(xerrors.Config, "parsing config file", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate enforces spec.md's structural invariants, returning a
// xerrors.Config-kind error describing the first problem found.
func (c *Config) Validate() error {
	if len(c.Engines) < 2 {
		return xerrors.New(xerrors.Config, "at least two engines are required")
	}
	seen := make(map[string]bool, len(c.Engines))
	for _, e := range c.Engines {
		if e.Name == "" {
			return xerrors.New(xerrors.Config, "engine name must not be empty")
		}
		if seen[e.Name] {
			return xerrors.New(xerrors.Config, fmt.Sprintf("duplicate engine name %q", e.Name))
		}
		seen[e.Name] = true
		if len(e.Command) == 0 {
			return xerrors.New(xerrors.Config, fmt.Sprintf("engine %q: command must not be empty", e.Name))
		}
		if e.Limits.TC.FixedTimeMs > 0 && e.Limits.TC.TimeMs > 0 {
			return xerrors.New(xerrors.Config, fmt.Sprintf("engine %q: fixed_time_ms and time_ms are mutually exclusive", e.Name))
		}
	}

	t := &c.Tournament
	if t.Concurrency < 1 {
		return xerrors.New(xerrors.Config, "concurrency must be >= 1")
	}
	if t.Rounds < 1 {
		return xerrors.New(xerrors.Config, "rounds must be >= 1")
	}
	games := t.Games
	if t.Repeat {
		games = 2
	}
	if games != 1 && games != 2 {
		return xerrors.New(xerrors.Config, "games must be 1 or 2")
	}
	t.Games = games

	if t.Sprt.Enabled {
		switch t.Sprt.Model {
		case stats.Normalized, stats.BayesElo, stats.Logistic:
		default:
			return xerrors.New(xerrors.Config, fmt.Sprintf("unknown sprt model %q", t.Sprt.Model))
		}
		if t.Sprt.Alpha <= 0 || t.Sprt.Alpha >= 1 || t.Sprt.Beta <= 0 || t.Sprt.Beta >= 1 {
			return xerrors.New(xerrors.Config, "sprt.alpha and sprt.beta must be in (0, 1)")
		}
	}
	if t.Opening.File != "" {
		switch t.Opening.Format {
		case book.EPD, book.PGN:
		default:
			return xerrors.New(xerrors.Config, fmt.Sprintf("unknown opening format %q", t.Opening.Format))
		}
	}
	return nil
}

// PlayerTimeControl converts one engine's limits into a player.TimeControl.
func (e EngineConfig) PlayerTimeControl() player.TimeControl {
	return e.Limits.TC.toPlayer()
}

// DrawConfig converts tournament draw options into a match.DrawConfig.
func (t TournamentOptions) DrawConfig() match.DrawConfig {
	return match.DrawConfig{
		Enabled: t.Draw.Enabled, MoveNumber: t.Draw.MoveNumber,
		MoveCount: t.Draw.MoveCount, ScoreCP: t.Draw.Score,
	}
}

// ResignConfig converts tournament resign options into a match.ResignConfig.
func (t TournamentOptions) ResignConfig() match.ResignConfig {
	return match.ResignConfig{
		Enabled: t.Resign.Enabled, MoveCount: t.Resign.MoveCount, ScoreCP: t.Resign.Score,
	}
}
