package sim

import (
	"math"
	"math/rand"

	"github.com/wavetank-dev/wavetank/config"
)

// Particle mirrors the GPU-side record byte for byte: 48 bytes, all fields
// 4-byte aligned. Predicted position, density and near density are transient
// per-frame values the compute passes own.
type Particle struct {
	Position          [2]float32
	Velocity          [2]float32
	PredictedPosition [2]float32
	Density           float32
	NearDensity       float32
	Color             [4]float32
}

// ParticleStride is the byte size of one particle record on the GPU.
const ParticleStride = 48

// SeedLattice places count particles on a centered square lattice with the
// configured spacing, plus a small seeded jitter so perfectly symmetric
// columns do not persist. Zero initial velocity.
func SeedLattice(cfg *config.Config, seed int64) []Particle {
	count := cfg.Particles.Count
	spacing := float32(cfg.Particles.Spacing)
	rng := rand.New(rand.NewSource(seed))

	gridWidth := int(math.Ceil(math.Sqrt(float64(count))))
	origin := -float32(gridWidth-1) * spacing / 2

	particles := make([]Particle, count)
	for i := range particles {
		col := i % gridWidth
		row := i / gridWidth
		jx := (rng.Float32() - 0.5) * spacing * 0.1
		jy := (rng.Float32() - 0.5) * spacing * 0.1

		p := &particles[i]
		p.Position = [2]float32{
			origin + float32(col)*spacing + jx,
			origin + float32(row)*spacing + jy,
		}
		p.PredictedPosition = p.Position
		p.Color = [4]float32{0.08, 0.35, 0.85, 1.0}
	}
	return particles
}
