package sim

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// readBuffer copies size bytes of src into the staging buffer, blocks until
// the copy completes, and returns the mapped contents. Readback stalls the
// pipeline, so it only runs in validation paths, never per production frame.
func (s *Simulation) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	encoder, err := s.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("creating readback encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(src, 0, s.buffers.Staging, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return nil, fmt.Errorf("encoding readback copy: %w", err)
	}
	s.ctx.Queue.Submit(cmd)
	cmd.Release()
	encoder.Release()

	var mapStatus wgpu.BufferMapAsyncStatus
	err = s.buffers.Staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
	})
	if err != nil {
		return nil, fmt.Errorf("mapping staging buffer: %w", err)
	}
	s.ctx.Device.Poll(true, nil)
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("staging buffer map failed: status %d", mapStatus)
	}
	defer s.buffers.Staging.Unmap()

	mapped := s.buffers.Staging.GetMappedRange(0, uint(size))
	out := make([]byte, size)
	copy(out, mapped)
	return out, nil
}

// ReadParticles copies the particle buffer back to the CPU.
func (s *Simulation) ReadParticles() ([]Particle, error) {
	data, err := s.readBuffer(s.buffers.Particles, uint64(s.buffers.ParticleCount)*ParticleStride)
	if err != nil {
		return nil, err
	}
	particles := make([]Particle, s.buffers.ParticleCount)
	copy(particles, wgpu.FromBytes[Particle](data))
	return particles, nil
}

// ReadSpatialLookup copies the full padded lookup array back to the CPU.
func (s *Simulation) ReadSpatialLookup() ([]LookupEntry, error) {
	data, err := s.readBuffer(s.buffers.Lookup, uint64(s.buffers.NextPow2)*lookupEntryStride)
	if err != nil {
		return nil, err
	}
	entries := make([]LookupEntry, s.buffers.NextPow2)
	copy(entries, wgpu.FromBytes[LookupEntry](data))
	return entries, nil
}

// Validate reads the simulation state back and checks the pipeline's
// frame invariants: the lookup array is sorted with sentinels at the tail,
// kinetic energy respects the clamp, and every particle sits inside the
// bounds. Intended for periodic use behind a flag.
func (s *Simulation) Validate() error {
	entries, err := s.ReadSpatialLookup()
	if err != nil {
		return err
	}
	count := int(s.buffers.ParticleCount)
	for i := 1; i < count; i++ {
		if entries[i-1].Key > entries[i].Key {
			return fmt.Errorf("lookup not sorted at %d: key %d > %d", i, entries[i-1].Key, entries[i].Key)
		}
	}
	for i := count; i < len(entries); i++ {
		if entries[i].Key != Sentinel {
			return fmt.Errorf("padding entry %d has non-sentinel key %d", i, entries[i].Key)
		}
	}

	particles, err := s.ReadParticles()
	if err != nil {
		return err
	}
	maxEnergy := float64(s.uniforms.MaxEnergy)
	bounds := s.uniforms.ScreenBounds
	const tolerance = 1e-3
	for i, p := range particles {
		speedSq := float64(p.Velocity[0])*float64(p.Velocity[0]) +
			float64(p.Velocity[1])*float64(p.Velocity[1])
		if 0.5*speedSq > maxEnergy*(1+tolerance) {
			return fmt.Errorf("particle %d energy %.3f exceeds clamp %.3f", i, 0.5*speedSq, maxEnergy)
		}
		if p.Position[0] < bounds[0]-tolerance || p.Position[0] > bounds[1]+tolerance ||
			p.Position[1] < bounds[2]-tolerance || p.Position[1] > bounds[3]+tolerance {
			return fmt.Errorf("particle %d at (%.3f, %.3f) outside bounds", i, p.Position[0], p.Position[1])
		}
		if math.IsNaN(float64(p.Position[0])) || math.IsNaN(float64(p.Position[1])) {
			return fmt.Errorf("particle %d position is NaN", i)
		}
	}
	return nil
}
