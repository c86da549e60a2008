package sim

import (
	"fmt"
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/wavetank-dev/wavetank/config"
)

// Simulation drives the five-pass compute pipeline. All passes for a frame
// are recorded into one command encoder and submitted together, so the device
// executes them in order with a full barrier between dispatches that touch
// the same buffers. That submission ordering is the only synchronization the
// pipeline needs.
type Simulation struct {
	ctx       *Context
	cfg       *config.Config
	buffers   *Buffers
	pipelines *Pipelines
	sortSteps []SortStepParams

	uniforms   Uniforms
	frameCount uint32
}

// New allocates buffers, compiles pipelines and uploads the initial particle
// population. Any failure here is fatal to the session.
func New(ctx *Context, cfg *config.Config, particles []Particle) (*Simulation, error) {
	steps := BuildSortSteps(cfg.Derived.NextPow2)

	buffers, err := NewBuffers(ctx, cfg, particles, steps)
	if err != nil {
		return nil, fmt.Errorf("simulation setup: %w", err)
	}

	pipelines, err := NewPipelines(ctx, buffers)
	if err != nil {
		buffers.Release()
		return nil, fmt.Errorf("simulation setup: %w", err)
	}

	slog.Info("simulation pipeline ready",
		"particles", cfg.Particles.Count,
		"padded_entries", cfg.Derived.NextPow2,
		"sort_steps", len(steps),
	)

	return &Simulation{
		ctx:       ctx,
		cfg:       cfg,
		buffers:   buffers,
		pipelines: pipelines,
		sortSteps: steps,
		uniforms:  NewUniforms(cfg),
	}, nil
}

// Buffers exposes the GPU buffers for the rendering collaborator, which reads
// the particle buffer but never writes it.
func (s *Simulation) Buffers() *Buffers {
	return s.buffers
}

// FrameCount returns the number of completed steps this session.
func (s *Simulation) FrameCount() uint32 {
	return s.frameCount
}

// Step runs one full simulation frame: upload the frame's tunables, then
// bin, sort, offset build, density, and force/integration dispatches in a
// single submission.
func (s *Simulation) Step(fc FrameConfig) error {
	s.uniforms.apply(fc)
	s.uniforms.FrameCount = s.frameCount
	s.ctx.Queue.WriteBuffer(s.buffers.Uniform, 0, wgpu.ToBytes([]Uniforms{s.uniforms}))

	encoder, err := s.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("creating command encoder: %w", err)
	}

	particleGroups := dispatchGroups(s.buffers.ParticleCount)
	sortGroups := dispatchGroups(s.buffers.NextPow2 / 2)

	s.dispatch(encoder, s.pipelines.Bin, particleGroups, 0)
	for i := range s.sortSteps {
		s.dispatch(encoder, s.pipelines.Sort, sortGroups, uint32(i*uniformAlignment))
	}
	s.dispatch(encoder, s.pipelines.Offsets, particleGroups, 0)
	s.dispatch(encoder, s.pipelines.Predict, particleGroups, 0)
	s.dispatch(encoder, s.pipelines.Integrate, particleGroups, 0)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("encoding frame %d: %w", s.frameCount, err)
	}
	s.ctx.Queue.Submit(cmd)
	cmd.Release()
	encoder.Release()

	s.frameCount++
	return nil
}

// dispatch records one compute pass. Every pass supplies a dynamic offset for
// the sort params binding; non-sort passes pass 0 and never read it.
func (s *Simulation) dispatch(encoder *wgpu.CommandEncoder, pipeline *wgpu.ComputePipeline, groups uint32, sortOffset uint32) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, s.pipelines.BindGroup, []uint32{sortOffset})
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.End()
	pass.Release()
}

// Reseed replaces the particle population with a fresh lattice and restarts
// the frame counter.
func (s *Simulation) Reseed(seed int64) error {
	if err := s.buffers.Reseed(s.ctx, SeedLattice(s.cfg, seed)); err != nil {
		return err
	}
	s.frameCount = 0
	slog.Info("particles reseeded", "seed", seed)
	return nil
}

// Release frees the pipelines and buffers. The Context is owned by the
// caller and released separately.
func (s *Simulation) Release() {
	if s.pipelines != nil {
		s.pipelines.Release()
	}
	if s.buffers != nil {
		s.buffers.Release()
	}
}

func dispatchGroups(threads uint32) uint32 {
	return (threads + workgroupSize - 1) / workgroupSize
}
