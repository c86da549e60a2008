package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated fluid statistics for a frame window.
// Distribution fields are sampled from the most recent state readback.
type WindowStats struct {
	WindowStartFrame uint32  `csv:"-"`
	WindowEndFrame   uint32  `csv:"window_end"`
	SimTimeSec       float64 `csv:"sim_time"`

	// Speed distribution over all particles
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Kinetic energy, for watching the clamp in action
	KineticMean float64 `csv:"kinetic_mean"`
	KineticMax  float64 `csv:"kinetic_max"`

	// Density distribution relative to the configured target
	DensityMean float64 `csv:"density_mean"`
	DensityP10  float64 `csv:"density_p10"`
	DensityP50  float64 `csv:"density_p50"`
	DensityP90  float64 `csv:"density_p90"`

	// Net momentum magnitude; symmetric setups should hover near zero
	MomentumX float64 `csv:"momentum_x"`
	MomentumY float64 `csv:"momentum_y"`
}

// CollectWindowStats computes distribution statistics from per-particle
// speeds, densities and velocity components read back from the GPU.
func CollectWindowStats(windowStart, windowEnd uint32, simTime float64, speeds, densities, velX, velY []float64) WindowStats {
	ws := WindowStats{
		WindowStartFrame: windowStart,
		WindowEndFrame:   windowEnd,
		SimTimeSec:       simTime,
	}
	if len(speeds) == 0 {
		return ws
	}

	sort.Float64s(speeds)
	ws.SpeedMean = stat.Mean(speeds, nil)
	ws.SpeedP10 = stat.Quantile(0.1, stat.Empirical, speeds, nil)
	ws.SpeedP50 = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	ws.SpeedP90 = stat.Quantile(0.9, stat.Empirical, speeds, nil)
	ws.SpeedMax = speeds[len(speeds)-1]
	ws.KineticMean = 0.5 * stat.Mean(squared(speeds), nil)
	ws.KineticMax = 0.5 * ws.SpeedMax * ws.SpeedMax

	if len(densities) > 0 {
		sort.Float64s(densities)
		ws.DensityMean = stat.Mean(densities, nil)
		ws.DensityP10 = stat.Quantile(0.1, stat.Empirical, densities, nil)
		ws.DensityP50 = stat.Quantile(0.5, stat.Empirical, densities, nil)
		ws.DensityP90 = stat.Quantile(0.9, stat.Empirical, densities, nil)
	}

	for i := range velX {
		ws.MomentumX += velX[i]
		ws.MomentumY += velY[i]
	}

	return ws
}

func squared(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * x
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_end", uint64(s.WindowEndFrame)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_max", s.KineticMax),
		slog.Float64("density_mean", s.DensityMean),
		slog.Float64("density_p50", s.DensityP50),
	)
}

// LogStats logs the window's statistics.
func (s WindowStats) LogStats() {
	slog.Info("fluid",
		"window_end", s.WindowEndFrame,
		"sim_time", s.SimTimeSec,
		"speed_mean", s.SpeedMean,
		"speed_p90", s.SpeedP90,
		"speed_max", s.SpeedMax,
		"density_mean", s.DensityMean,
		"momentum_x", s.MomentumX,
		"momentum_y", s.MomentumY,
	)
}
