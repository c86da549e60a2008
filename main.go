package main

import (
	"flag"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/wavetank-dev/wavetank/app"
	"github.com/wavetank-dev/wavetank/config"
)

func init() {
	// glfw event handling must run on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without a window")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed for particle seeding (0 = time-based)")
	maxFrames := flag.Int("max-frames", 0, "Stop after N frames (0 = unlimited)")
	validate := flag.Bool("validate", false, "Periodically read state back and check pipeline invariants")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Use config stats window if not overridden by CLI
	statsWindowSec := cfg.Telemetry.StatsWindow
	if *statsWindow > 0 {
		statsWindowSec = *statsWindow
	}

	a := app.New(cfg, app.Options{
		Seed:           rngSeed,
		Headless:       *headless,
		MaxFrames:      *maxFrames,
		LogStats:       *logStats,
		StatsWindowSec: statsWindowSec,
		OutputDir:      *outputDir,
		Validate:       *validate,
	})

	if err := a.Run(); err != nil {
		slog.Error("session failed", "error", err)
		os.Exit(1)
	}
}
