// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"math/bits"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	World     WorldConfig     `yaml:"world"`
	Particles ParticlesConfig `yaml:"particles"`
	Fluid     FluidConfig     `yaml:"fluid"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// WorldConfig holds the simulation bounds in world units.
// Particles are reflected and clamped at these edges.
type WorldConfig struct {
	XMin float64 `yaml:"xmin"`
	XMax float64 `yaml:"xmax"`
	YMin float64 `yaml:"ymin"`
	YMax float64 `yaml:"ymax"`
}

// ParticlesConfig holds the fixed particle population parameters.
type ParticlesConfig struct {
	Count   int     `yaml:"count"`   // Fixed population; never changes mid-session
	Size    float64 `yaml:"size"`    // Sprite size in world units (cosmetic)
	Spacing float64 `yaml:"spacing"` // Initial lattice spacing
}

// FluidConfig holds the SPH tunables uploaded to the GPU every frame.
type FluidConfig struct {
	SmoothingRadius       float64 `yaml:"smoothing_radius"`        // Interaction cutoff; doubles as grid cell size
	TargetDensity         float64 `yaml:"target_density"`          // Rest density for the equation of state
	PressureMultiplier    float64 `yaml:"pressure_multiplier"`     // Stiffness of pressure response
	NearDensityMultiplier float64 `yaml:"near_density_multiplier"` // Anti-clustering near-pressure stiffness
	ViscosityStrength     float64 `yaml:"viscosity_strength"`
	DampingFactor         float64 `yaml:"damping_factor"`   // Velocity scale on boundary reflection
	Gravity               float64 `yaml:"gravity"`          // Downward acceleration magnitude
	MaxEnergy             float64 `yaml:"max_energy"`       // Kinetic energy ceiling per particle
	FixedDeltaTime        float64 `yaml:"fixed_delta_time"` // Simulation step in seconds
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	ValidateInterval    int     `yaml:"validate_interval"` // Frames between readback validations when enabled
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	NextPow2     uint32 // Lookup-array length: next power of two >= particle count
	NumSortSteps int    // Total bitonic (stage, step) iterations per frame
	ScreenW32    float32
	ScreenH32    float32

	// Kernel normalization constants, precomputed once so the compute
	// shaders never touch pi or pow.
	DensityKernelNorm     float32 // 15 / (2 pi r^5), spiky pow-2
	NearDensityKernelNorm float32 // 15 / (pi r^6), spiky pow-3
	ViscosityKernelNorm   float32 // 4 / (pi r^8), poly-6 on r^2 - d^2
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// validate rejects configurations the pipeline cannot run. Buffer sizes are
// fixed at setup, so a bad population or radius is a fatal configuration
// error here rather than a surprise mid-session.
func (c *Config) validate() error {
	if c.Particles.Count <= 0 {
		return fmt.Errorf("particles.count must be positive, got %d", c.Particles.Count)
	}
	if c.Particles.Count > math.MaxInt32 {
		return fmt.Errorf("particles.count %d exceeds the 32-bit index space", c.Particles.Count)
	}
	if c.Fluid.SmoothingRadius <= 0 {
		return fmt.Errorf("fluid.smoothing_radius must be positive, got %g", c.Fluid.SmoothingRadius)
	}
	if c.Fluid.FixedDeltaTime <= 0 {
		return fmt.Errorf("fluid.fixed_delta_time must be positive, got %g", c.Fluid.FixedDeltaTime)
	}
	if c.World.XMax <= c.World.XMin || c.World.YMax <= c.World.YMin {
		return fmt.Errorf("world bounds are empty: [%g,%g]x[%g,%g]",
			c.World.XMin, c.World.XMax, c.World.YMin, c.World.YMax)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.NextPow2 = NextPow2(uint32(c.Particles.Count))
	numStages := bits.Len32(c.Derived.NextPow2) - 1
	c.Derived.NumSortSteps = numStages * (numStages + 1) / 2
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)

	r := c.Fluid.SmoothingRadius
	c.Derived.DensityKernelNorm = float32(15.0 / (2.0 * math.Pi * math.Pow(r, 5)))
	c.Derived.NearDensityKernelNorm = float32(15.0 / (math.Pi * math.Pow(r, 6)))
	c.Derived.ViscosityKernelNorm = float32(4.0 / (math.Pi * math.Pow(r, 8)))
}

// NextPow2 returns the smallest power of two >= n (minimum 1).
func NextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
