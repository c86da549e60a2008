// Package app wires the simulation, rendering and telemetry into a frame
// loop, in windowed or headless mode.
package app

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/wavetank-dev/wavetank/camera"
	"github.com/wavetank-dev/wavetank/config"
	"github.com/wavetank-dev/wavetank/sim"
	"github.com/wavetank-dev/wavetank/telemetry"
)

// Options controls a session's behavior.
type Options struct {
	Seed           int64
	Headless       bool
	MaxFrames      int
	LogStats       bool
	StatsWindowSec float64
	OutputDir      string
	Validate       bool
}

// App owns the session state shared by both run modes.
type App struct {
	cfg  *config.Config
	opts Options

	ctx        *sim.Context
	simulation *sim.Simulation
	cam        *camera.Camera
	perf       *telemetry.PerfCollector
	outputs    *telemetry.OutputManager

	frameConfig sim.FrameConfig
	baseGravity float32
	paused      bool

	windowStartFrame uint32
}

// New sets up the GPU context, simulation and telemetry. The surface argument
// is resolved inside Run for windowed mode; headless sessions never create one.
func New(cfg *config.Config, opts Options) *App {
	return &App{
		cfg:  cfg,
		opts: opts,
		perf: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
	}
}

// Run executes the session until MaxFrames is reached or the window closes.
func (a *App) Run() error {
	if a.opts.Headless {
		return a.runHeadless()
	}
	return a.runWindowed()
}

func (a *App) runHeadless() error {
	ctx, err := sim.NewContext(nil, nil)
	if err != nil {
		return fmt.Errorf("headless setup: %w", err)
	}
	a.ctx = ctx
	defer ctx.Release()

	if err := a.setupSimulation(); err != nil {
		return err
	}
	defer a.teardown()

	slog.Info("starting headless simulation",
		"seed", a.opts.Seed,
		"max_frames", a.opts.MaxFrames,
		"particles", a.cfg.Particles.Count,
	)

	for {
		a.perf.StartFrame()
		a.perf.StartPhase(telemetry.PhaseSubmit)
		if err := a.simulation.Step(a.frameConfig); err != nil {
			return fmt.Errorf("frame %d: %w", a.simulation.FrameCount(), err)
		}
		if err := a.afterFrame(); err != nil {
			return err
		}
		a.perf.EndFrame()
		if a.opts.MaxFrames > 0 && int(a.simulation.FrameCount()) >= a.opts.MaxFrames {
			slog.Info("max frames reached", "frame", a.simulation.FrameCount())
			return nil
		}
	}
}

// setupSimulation seeds the population and builds the pipeline; shared by
// both run modes once a Context exists.
func (a *App) setupSimulation() error {
	particles := sim.SeedLattice(a.cfg, a.opts.Seed)
	simulation, err := sim.New(a.ctx, a.cfg, particles)
	if err != nil {
		return err
	}
	a.simulation = simulation

	a.frameConfig = sim.FrameConfigFromCfg(a.cfg)
	a.baseGravity = a.frameConfig.Gravity
	a.cam = camera.New(a.cfg.Derived.ScreenW32, a.cfg.Derived.ScreenH32)

	a.outputs, err = telemetry.NewOutputManager(a.opts.OutputDir)
	if err != nil {
		return err
	}
	if err := a.outputs.WriteConfig(a.cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) teardown() {
	if a.simulation != nil {
		a.simulation.Release()
	}
	if err := a.outputs.Close(); err != nil {
		slog.Error("closing outputs", "error", err)
	}
}

// afterFrame handles periodic validation and stats windows. It runs after
// the frame's submission in both modes.
func (a *App) afterFrame() error {
	frame := a.simulation.FrameCount()

	if a.opts.Validate && a.cfg.Telemetry.ValidateInterval > 0 &&
		frame%uint32(a.cfg.Telemetry.ValidateInterval) == 0 {
		a.perf.StartPhase(telemetry.PhaseValidate)
		if err := a.simulation.Validate(); err != nil {
			return fmt.Errorf("validation at frame %d: %w", frame, err)
		}
	}

	if !a.statsDue(frame) {
		return nil
	}
	return a.flushStatsWindow(frame)
}

// statsDue reports whether the current frame closes a stats window.
func (a *App) statsDue(frame uint32) bool {
	if !a.opts.LogStats && a.outputs == nil {
		return false
	}
	windowFrames := uint32(a.opts.StatsWindowSec / a.cfg.Fluid.FixedDeltaTime)
	return windowFrames > 0 && frame >= a.windowStartFrame+windowFrames
}

// flushStatsWindow reads the particle state back, aggregates distributions
// and emits them to the log and CSV outputs.
func (a *App) flushStatsWindow(frame uint32) error {
	particles, err := a.simulation.ReadParticles()
	if err != nil {
		return fmt.Errorf("stats readback at frame %d: %w", frame, err)
	}

	speeds := make([]float64, len(particles))
	densities := make([]float64, len(particles))
	velX := make([]float64, len(particles))
	velY := make([]float64, len(particles))
	for i, p := range particles {
		velX[i] = float64(p.Velocity[0])
		velY[i] = float64(p.Velocity[1])
		speeds[i] = math.Hypot(velX[i], velY[i])
		densities[i] = float64(p.Density)
	}

	simTime := float64(frame) * a.cfg.Fluid.FixedDeltaTime
	ws := telemetry.CollectWindowStats(a.windowStartFrame, frame, simTime, speeds, densities, velX, velY)
	perfStats := a.perf.Stats()

	if a.opts.LogStats {
		ws.LogStats()
		perfStats.LogStats()
	}
	if err := a.outputs.WriteWindow(ws); err != nil {
		return err
	}
	if err := a.outputs.WritePerf(perfStats, frame); err != nil {
		return err
	}

	a.windowStartFrame = frame
	return nil
}
