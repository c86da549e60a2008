package sim

import "github.com/wavetank-dev/wavetank/config"

// Uniforms mirrors the shader Config block: 144 bytes, scalars first, then
// the vec4 and mat4 fields at 16-byte aligned offsets (48, 64, 80).
// Field order here and in the WGSL struct must stay in sync.
type Uniforms struct {
	ParticleCount         uint32
	ParticleSize          float32
	SmoothingRadius       float32
	TargetDensity         float32
	PressureMultiplier    float32
	NearDensityMultiplier float32
	ViscosityStrength     float32
	DampingFactor         float32
	Gravity               float32
	MaxEnergy             float32
	FixedDeltaTime        float32
	FrameCount            uint32
	ScreenBounds          [4]float32 // xmin, xmax, ymin, ymax
	KernelNorms           [4]float32 // density, near density, viscosity, unused
	ViewProj              [16]float32
}

// UniformsStride is the byte size of the uniform block on the GPU.
const UniformsStride = 144

// FrameConfig carries the per-frame tunables the application may have changed
// since the last step. Applied atomically before the frame's dispatches.
type FrameConfig struct {
	TargetDensity         float32
	PressureMultiplier    float32
	NearDensityMultiplier float32
	ViscosityStrength     float32
	DampingFactor         float32
	Gravity               float32
	MaxEnergy             float32
	FixedDeltaTime        float32
	ViewProj              [16]float32
}

// FrameConfigFromCfg builds the initial per-frame tunables from the loaded
// configuration, with an identity view transform.
func FrameConfigFromCfg(cfg *config.Config) FrameConfig {
	return FrameConfig{
		TargetDensity:         float32(cfg.Fluid.TargetDensity),
		PressureMultiplier:    float32(cfg.Fluid.PressureMultiplier),
		NearDensityMultiplier: float32(cfg.Fluid.NearDensityMultiplier),
		ViscosityStrength:     float32(cfg.Fluid.ViscosityStrength),
		DampingFactor:         float32(cfg.Fluid.DampingFactor),
		Gravity:               float32(cfg.Fluid.Gravity),
		MaxEnergy:             float32(cfg.Fluid.MaxEnergy),
		FixedDeltaTime:        float32(cfg.Fluid.FixedDeltaTime),
		ViewProj: [16]float32{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
	}
}

// NewUniforms assembles the full uniform block from the static configuration.
// Per-frame fields are overwritten by apply before each upload.
func NewUniforms(cfg *config.Config) Uniforms {
	u := Uniforms{
		ParticleCount:   uint32(cfg.Particles.Count),
		ParticleSize:    float32(cfg.Particles.Size),
		SmoothingRadius: float32(cfg.Fluid.SmoothingRadius),
		ScreenBounds: [4]float32{
			float32(cfg.World.XMin),
			float32(cfg.World.XMax),
			float32(cfg.World.YMin),
			float32(cfg.World.YMax),
		},
		KernelNorms: [4]float32{
			cfg.Derived.DensityKernelNorm,
			cfg.Derived.NearDensityKernelNorm,
			cfg.Derived.ViscosityKernelNorm,
			0,
		},
	}
	u.apply(FrameConfigFromCfg(cfg))
	return u
}

func (u *Uniforms) apply(fc FrameConfig) {
	u.TargetDensity = fc.TargetDensity
	u.PressureMultiplier = fc.PressureMultiplier
	u.NearDensityMultiplier = fc.NearDensityMultiplier
	u.ViscosityStrength = fc.ViscosityStrength
	u.DampingFactor = fc.DampingFactor
	u.Gravity = fc.Gravity
	u.MaxEnergy = fc.MaxEnergy
	u.FixedDeltaTime = fc.FixedDeltaTime
	u.ViewProj = fc.ViewProj
}
