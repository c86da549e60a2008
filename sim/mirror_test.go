package sim

import (
	"math"

	"github.com/wavetank-dev/wavetank/config"
)

// mirror is a CPU reference model of the five compute passes, used to verify
// the pipeline's numerical and ordering properties without a GPU. It consumes
// the production sort step table, kernel constants, seeding and layouts, and
// follows the shader's arithmetic step for step.
type mirror struct {
	uniforms  Uniforms
	particles []Particle
	lookup    []LookupEntry
	offsets   []uint32
	sortSteps []SortStepParams
}

func newMirror(cfg *config.Config, particles []Particle) *mirror {
	np2 := cfg.Derived.NextPow2
	m := &mirror{
		uniforms:  NewUniforms(cfg),
		particles: particles,
		lookup:    make([]LookupEntry, np2),
		offsets:   make([]uint32, cfg.Particles.Count),
		sortSteps: BuildSortSteps(np2),
	}
	for i := range m.lookup {
		m.lookup[i] = LookupEntry{Key: Sentinel, Index: Sentinel}
	}
	return m
}

// step runs one full frame: bin, sort, offsets, density, force.
func (m *mirror) step(fc FrameConfig) {
	m.uniforms.apply(fc)
	m.binPass()
	m.sortPass()
	m.offsetsPass()
	m.densityPass()
	m.forcePass()
	m.uniforms.FrameCount++
}

func (m *mirror) cellCoord(pos [2]float32) [2]int32 {
	r := float64(m.uniforms.SmoothingRadius)
	return [2]int32{
		int32(math.Floor(float64(pos[0]) / r)),
		int32(math.Floor(float64(pos[1]) / r)),
	}
}

func (m *mirror) cellKey(cell [2]int32) uint32 {
	a := uint32(cell[0]) * 15823
	b := uint32(cell[1]) * 9737333
	return (a ^ b) % m.uniforms.ParticleCount
}

func (m *mirror) binPass() {
	for i := range m.offsets {
		m.offsets[i] = Sentinel
	}
	for i := range m.particles {
		key := m.cellKey(m.cellCoord(m.particles[i].Position))
		m.lookup[i] = LookupEntry{Key: key, Index: uint32(i)}
	}
}

func (m *mirror) sortPass() {
	for _, s := range m.sortSteps {
		for i := uint32(0); i < s.NumEntries/2; i++ {
			h := i & (s.GroupWidth - 1)
			low := h + (s.GroupHeight+1)*(i/s.GroupWidth)
			var high uint32
			if s.StepIndex == 0 {
				high = low + s.GroupHeight - 2*h
			} else {
				high = low + (s.GroupHeight+1)/2
			}
			if high >= s.NumEntries {
				continue
			}
			if m.lookup[low].Key > m.lookup[high].Key {
				m.lookup[low], m.lookup[high] = m.lookup[high], m.lookup[low]
			}
		}
	}
}

func (m *mirror) offsetsPass() {
	count := m.uniforms.ParticleCount
	for i := uint32(0); i < count; i++ {
		key := m.lookup[i].Key
		if key == Sentinel {
			continue
		}
		if i == 0 || m.lookup[i-1].Key != key {
			m.offsets[key] = i
		}
	}
}

// scanNeighbors enumerates particle indices in the 3x3 cell block around
// center, deduplicating colliding keys exactly as the shader does.
func (m *mirror) scanNeighbors(center [2]int32, visit func(q uint32)) {
	var seen [9]uint32
	seenCount := 0
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			key := m.cellKey([2]int32{center[0] + dx, center[1] + dy})
			dup := false
			for s := 0; s < seenCount; s++ {
				if seen[s] == key {
					dup = true
				}
			}
			if dup {
				continue
			}
			seen[seenCount] = key
			seenCount++

			start := m.offsets[key]
			if start == Sentinel {
				continue
			}
			for j := start; j < m.uniforms.ParticleCount; j++ {
				if m.lookup[j].Key != key {
					break
				}
				visit(m.lookup[j].Index)
			}
		}
	}
}

func (m *mirror) densityKernel(dst float32) float32 {
	r := m.uniforms.SmoothingRadius
	if dst >= r {
		return 0
	}
	v := r - dst
	return v * v * m.uniforms.KernelNorms[0]
}

func (m *mirror) densityDerivative(dst float32) float32 {
	r := m.uniforms.SmoothingRadius
	if dst >= r {
		return 0
	}
	return -2 * (r - dst) * m.uniforms.KernelNorms[0]
}

func (m *mirror) nearDensityKernel(dst float32) float32 {
	r := m.uniforms.SmoothingRadius
	if dst >= r {
		return 0
	}
	v := r - dst
	return v * v * v * m.uniforms.KernelNorms[1]
}

func (m *mirror) nearDensityDerivative(dst float32) float32 {
	r := m.uniforms.SmoothingRadius
	if dst >= r {
		return 0
	}
	v := r - dst
	return -3 * v * v * m.uniforms.KernelNorms[1]
}

func (m *mirror) viscosityKernel(dst float32) float32 {
	r := m.uniforms.SmoothingRadius
	if dst >= r {
		return 0
	}
	v := r*r - dst*dst
	return v * v * v * m.uniforms.KernelNorms[2]
}

func dist(a, b [2]float32) float32 {
	return float32(math.Hypot(float64(a[0]-b[0]), float64(a[1]-b[1])))
}

func (m *mirror) densityPass() {
	dt := m.uniforms.FixedDeltaTime
	next := make([]Particle, len(m.particles))
	copy(next, m.particles)

	for i := range m.particles {
		p := m.particles[i]
		p.PredictedPosition = [2]float32{
			p.Position[0] + p.Velocity[0]*dt,
			p.Position[1] + p.Velocity[1]*dt,
		}

		var density, nearDensity float32
		m.scanNeighbors(m.cellCoord(p.Position), func(q uint32) {
			dst := dist(p.Position, m.particles[q].Position)
			density += m.densityKernel(dst)
			nearDensity += m.nearDensityKernel(dst)
		})

		p.Density = density
		p.NearDensity = nearDensity
		next[i] = p
	}
	m.particles = next
}

const mirrorDensityEpsilon = 1e-6

func (m *mirror) pressureOf(density float32) float32 {
	return m.uniforms.PressureMultiplier * (density - m.uniforms.TargetDensity)
}

func (m *mirror) nearPressureOf(nearDensity float32) float32 {
	return m.uniforms.NearDensityMultiplier * nearDensity
}

func (m *mirror) forcePass() {
	dt := m.uniforms.FixedDeltaTime
	bounds := m.uniforms.ScreenBounds
	next := make([]Particle, len(m.particles))
	copy(next, m.particles)

	for i := range m.particles {
		p := m.particles[i]
		pressureP := m.pressureOf(p.Density)
		nearPressureP := m.nearPressureOf(p.NearDensity)

		var pressureForce, viscosityForce [2]float32
		m.scanNeighbors(m.cellCoord(p.PredictedPosition), func(q uint32) {
			if q == uint32(i) {
				return
			}
			other := m.particles[q]
			offset := [2]float32{
				other.PredictedPosition[0] - p.PredictedPosition[0],
				other.PredictedPosition[1] - p.PredictedPosition[1],
			}
			dst := float32(math.Hypot(float64(offset[0]), float64(offset[1])))
			if dst >= m.uniforms.SmoothingRadius {
				return
			}

			dir := [2]float32{0, 1}
			if dst > 0 {
				dir = [2]float32{offset[0] / dst, offset[1] / dst}
			}

			densityQ := maxf(other.Density, mirrorDensityEpsilon)
			nearDensityQ := maxf(other.NearDensity, mirrorDensityEpsilon)
			sharedPressure := (pressureP + m.pressureOf(other.Density)) * 0.5
			sharedNear := (nearPressureP + m.nearPressureOf(other.NearDensity)) * 0.5

			pd := m.densityDerivative(dst) * sharedPressure / densityQ
			nd := m.nearDensityDerivative(dst) * sharedNear / nearDensityQ
			pressureForce[0] += dir[0] * (pd + nd)
			pressureForce[1] += dir[1] * (pd + nd)

			vk := m.viscosityKernel(dst)
			viscosityForce[0] += (other.Velocity[0] - p.Velocity[0]) * vk
			viscosityForce[1] += (other.Velocity[1] - p.Velocity[1]) * vk
		})

		densityP := maxf(p.Density, mirrorDensityEpsilon)
		ax := (pressureForce[0] + viscosityForce[0]*m.uniforms.ViscosityStrength) / densityP
		ay := (pressureForce[1]+viscosityForce[1]*m.uniforms.ViscosityStrength)/densityP - m.uniforms.Gravity

		p.Velocity[0] += ax * dt
		p.Velocity[1] += ay * dt

		energy := 0.5 * (p.Velocity[0]*p.Velocity[0] + p.Velocity[1]*p.Velocity[1])
		if energy > m.uniforms.MaxEnergy {
			scale := float32(math.Sqrt(float64(m.uniforms.MaxEnergy / energy)))
			p.Velocity[0] *= scale
			p.Velocity[1] *= scale
		}

		p.Position[0] += p.Velocity[0] * dt
		p.Position[1] += p.Velocity[1] * dt

		if p.Position[0] < bounds[0] {
			p.Position[0] = bounds[0]
			p.Velocity[0] = -p.Velocity[0] * m.uniforms.DampingFactor
		} else if p.Position[0] > bounds[1] {
			p.Position[0] = bounds[1]
			p.Velocity[0] = -p.Velocity[0] * m.uniforms.DampingFactor
		}
		if p.Position[1] < bounds[2] {
			p.Position[1] = bounds[2]
			p.Velocity[1] = -p.Velocity[1] * m.uniforms.DampingFactor
		} else if p.Position[1] > bounds[3] {
			p.Position[1] = bounds[3]
			p.Velocity[1] = -p.Velocity[1] * m.uniforms.DampingFactor
		}

		next[i] = p
	}
	m.particles = next
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
