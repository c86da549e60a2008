package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestCollectWindowStats(t *testing.T) {
	speeds := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	densities := []float64{0.5, 0.5, 0.5, 0.5}
	velX := []float64{1, -1, 2, -2}
	velY := []float64{3, -3, 0, 0}

	ws := CollectWindowStats(100, 200, 1.5, speeds, densities, velX, velY)

	if ws.WindowStartFrame != 100 || ws.WindowEndFrame != 200 {
		t.Errorf("window frames (%d, %d), want (100, 200)", ws.WindowStartFrame, ws.WindowEndFrame)
	}
	if ws.SimTimeSec != 1.5 {
		t.Errorf("sim time %g, want 1.5", ws.SimTimeSec)
	}
	if ws.SpeedMean != 5.5 {
		t.Errorf("speed mean %g, want 5.5", ws.SpeedMean)
	}
	if ws.SpeedMax != 10 {
		t.Errorf("speed max %g, want 10", ws.SpeedMax)
	}
	if ws.SpeedP50 < 5 || ws.SpeedP50 > 6 {
		t.Errorf("speed p50 %g outside [5, 6]", ws.SpeedP50)
	}
	if ws.KineticMax != 50 {
		t.Errorf("kinetic max %g, want 50", ws.KineticMax)
	}
	if ws.DensityMean != 0.5 {
		t.Errorf("density mean %g, want 0.5", ws.DensityMean)
	}
	// Symmetric velocities cancel.
	if ws.MomentumX != 0 || ws.MomentumY != 0 {
		t.Errorf("momentum (%g, %g), want (0, 0)", ws.MomentumX, ws.MomentumY)
	}
}

func TestCollectWindowStatsEmpty(t *testing.T) {
	ws := CollectWindowStats(0, 0, 0, nil, nil, nil, nil)
	if ws.SpeedMean != 0 || ws.DensityMean != 0 {
		t.Errorf("empty input produced non-zero stats: %+v", ws)
	}
}

func TestPerfCollectorWindow(t *testing.T) {
	p := NewPerfCollector(4)

	for i := 0; i < 6; i++ {
		p.StartFrame()
		p.StartPhase(PhaseEncode)
		time.Sleep(time.Millisecond)
		p.StartPhase(PhaseSubmit)
		p.EndFrame()
	}

	stats := p.Stats()
	if stats.AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration")
	}
	if stats.MinFrameDuration > stats.MaxFrameDuration {
		t.Errorf("min %v > max %v", stats.MinFrameDuration, stats.MaxFrameDuration)
	}
	if _, ok := stats.PhaseAvg[PhaseEncode]; !ok {
		t.Error("encode phase missing from averages")
	}

	// Percentages of recorded phases should roughly cover the frame.
	var total float64
	for _, pct := range stats.PhasePct {
		total += pct
	}
	if total < 50 || total > 101 {
		t.Errorf("phase percentages sum to %g, expected near 100", total)
	}
}

func TestPerfCollectorEmptyStats(t *testing.T) {
	p := NewPerfCollector(8)
	stats := p.Stats()
	if stats.AvgFrameDuration != 0 || stats.FramesPerSecond != 0 {
		t.Errorf("empty collector produced stats: %+v", stats)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		AvgFrameDuration: 2 * time.Millisecond,
		FramesPerSecond:  500,
		PhasePct: map[string]float64{
			PhaseEncode: 40,
			PhaseSubmit: 60,
		},
	}
	row := s.ToCSV(1234)

	if row.WindowEnd != 1234 {
		t.Errorf("window end %d, want 1234", row.WindowEnd)
	}
	if row.AvgFrameUS != 2000 {
		t.Errorf("avg frame %d us, want 2000", row.AvgFrameUS)
	}
	if math.Abs(row.EncodePct-40) > 1e-9 || math.Abs(row.SubmitPct-60) > 1e-9 {
		t.Errorf("phase percentages (%g, %g), want (40, 60)", row.EncodePct, row.SubmitPct)
	}
}
