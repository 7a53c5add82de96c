// gauntlet is a chess-engine tournament driver: it schedules, concurrently
// executes, and statistically analyzes games between two or more UCI
// engines.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/seekerror/build"
	"github.com/seekerror/logw"

	"github.com/herohde/gauntlet/pkg/book"
	"github.com/herohde/gauntlet/pkg/config"
	"github.com/herohde/gauntlet/pkg/output"
	"github.com/herohde/gauntlet/pkg/rules"
	"github.com/herohde/gauntlet/pkg/tournament"
)

var version = build.NewVersion(0, 1, 0)

var (
	configPath = flag.String("config", "", "Path to the tournament YAML config file (required)")
	pgnOut     = flag.String("pgn", "", "Override tournament.pgn_out: append-only PGN output path")
	statsOut   = flag.String("stats", "", "Override tournament.stats_out: JSON stats snapshot path")
	concurrency = flag.Int("concurrency", 0, "Override tournament.concurrency (0 = use config value)")
	rounds     = flag.Int("rounds", 0, "Override tournament.rounds (0 = use config value)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: gauntlet -config <file.yaml> [options]

GAUNTLET is a chess-engine tournament driver: round-robin scheduling,
UCI process management, adjudication, and SPRT-based early stopping.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if *showVersion {
		fmt.Printf("gauntlet %v\n", version)
		return
	}
	if *configPath == "" {
		flag.Usage()
		logw.Exitf(ctx, "-config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logw.Exitf(ctx, "Invalid configuration: %v", err)
	}
	if *concurrency > 0 {
		cfg.Tournament.Concurrency = *concurrency
	}
	if *rounds > 0 {
		cfg.Tournament.Rounds = *rounds
	}
	if *pgnOut != "" {
		cfg.Tournament.PGNOut = *pgnOut
	}
	if *statsOut != "" {
		cfg.Tournament.StatsOut = *statsOut
	}

	rl := rules.Notnil{}

	var b *book.Book
	if cfg.Tournament.Opening.File != "" {
		f, err := os.Open(cfg.Tournament.Opening.File)
		if err != nil {
			logw.Exitf(ctx, "Opening book: %v", err)
		}
		defer f.Close()

		b, err = book.Load(f, cfg.Tournament.Opening.Format, cfg.Tournament.Opening.Order,
			cfg.Tournament.Seed, cfg.Tournament.Opening.Start, 0, rl)
		if err != nil {
			logw.Exitf(ctx, "Opening book: %v", err)
		}
	} else {
		b, err = book.Load(strings.NewReader(rules.StartingFEN+"\n"), book.EPD, book.Sequential, cfg.Tournament.Seed, 0, 0, rl)
		if err != nil {
			logw.Exitf(ctx, "Opening book: %v", err)
		}
	}

	opts := []tournament.Option{
		WithConsoleReporter(),
	}
	if cfg.Tournament.PGNOut != "" {
		w, err := output.OpenPGNWriter(cfg.Tournament.PGNOut)
		if err != nil {
			logw.Exitf(ctx, "PGN output: %v", err)
		}
		defer w.Close()
		opts = append(opts, tournament.WithPGNWriter(w))
	}
	if cfg.Tournament.StatsOut != "" {
		opts = append(opts, tournament.WithSnapshotPath(cfg.Tournament.StatsOut))
	}

	s := tournament.New(cfg.Engines, b, rl, cfg.Tournament, opts...)
	s.Run(ctx)
	s.Final(ctx)

	logw.Infof(ctx, "Completed %d games", s.MatchCount())
}

// WithConsoleReporter wires plain stdout reporting, the default output path
// (the PGN/JSON collaborators are opt-in via config and the flags above).
func WithConsoleReporter() tournament.Option {
	return tournament.WithReporter(output.NewConsoleReporter(os.Stdout))
}
