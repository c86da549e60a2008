package sim

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/wavetank-dev/wavetank/config"
)

// LookupEntry is one (cell key, particle index) pair in the spatial lookup
// array. Entries past the particle count are padding with key Sentinel.
type LookupEntry struct {
	Key   uint32
	Index uint32
}

// Sentinel marks padding lookup entries and empty offset-table slots.
const Sentinel uint32 = 0xFFFFFFFF

const lookupEntryStride = 8

// Buffers holds every GPU buffer the pipeline touches. Sizes are fixed at
// setup from the configured particle count; there is no mid-session resize.
type Buffers struct {
	Particles  *wgpu.Buffer // count * ParticleStride, storage
	Uniform    *wgpu.Buffer // UniformsStride, uniform, rewritten every frame
	Lookup     *wgpu.Buffer // nextPow2 * 8, storage, padded with sentinels
	Offsets    *wgpu.Buffer // count * 4, storage, reset in-shader per frame
	SortParams *wgpu.Buffer // one aligned SortStepParams per sort iteration
	Staging    *wgpu.Buffer // map-read target for validation readback

	ParticleCount uint32
	NextPow2      uint32
}

// NewBuffers allocates and seeds the pipeline's buffers. The sort step table
// is packed and uploaded once here: it depends only on the padded entry
// count, which never changes mid-session.
func NewBuffers(ctx *Context, cfg *config.Config, particles []Particle, steps []SortStepParams) (*Buffers, error) {
	if len(particles) != cfg.Particles.Count {
		return nil, fmt.Errorf("seeded %d particles for a configured population of %d",
			len(particles), cfg.Particles.Count)
	}

	count := uint32(cfg.Particles.Count)
	np2 := cfg.Derived.NextPow2

	b := &Buffers{ParticleCount: count, NextPow2: np2}

	var err error
	b.Particles, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "particle_buffer",
		Size:  uint64(count) * ParticleStride,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("creating particle buffer: %w", err)
	}
	ctx.Queue.WriteBuffer(b.Particles, 0, wgpu.ToBytes(particles))

	b.Uniform, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "config_buffer",
		Size:  UniformsStride,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("creating config buffer: %w", err)
	}

	b.Lookup, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "spatial_lookup_buffer",
		Size:  uint64(np2) * lookupEntryStride,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("creating spatial lookup buffer: %w", err)
	}
	// Seed every entry with the sentinel key. The binning pass rewrites
	// [0, count) each frame; the padding tail keeps sorting to the back, so
	// this write happens exactly once.
	pad := make([]LookupEntry, np2)
	for i := range pad {
		pad[i] = LookupEntry{Key: Sentinel, Index: Sentinel}
	}
	ctx.Queue.WriteBuffer(b.Lookup, 0, wgpu.ToBytes(pad))

	b.Offsets, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "spatial_lookup_offsets_buffer",
		Size:  uint64(count) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("creating offsets buffer: %w", err)
	}

	// At least one slot even when the padded entry count needs no sort
	// iterations, so the bind group's minimum binding size is always met.
	sortSlots := len(steps)
	if sortSlots == 0 {
		sortSlots = 1
	}
	b.SortParams, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "sorting_params_buffer",
		Size:  uint64(sortSlots) * uniformAlignment,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("creating sort params buffer: %w", err)
	}
	if len(steps) > 0 {
		ctx.Queue.WriteBuffer(b.SortParams, 0, packSortSteps(steps))
	}

	// Sized for the largest readback source. The lookup array is at most
	// 2*count entries of 8 bytes, well under count*48.
	b.Staging, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "staging_buffer",
		Size:  uint64(count) * ParticleStride,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("creating staging buffer: %w", err)
	}

	return b, nil
}

// Reseed replaces the particle population in place. The count must match the
// session's configured population.
func (b *Buffers) Reseed(ctx *Context, particles []Particle) error {
	if uint32(len(particles)) != b.ParticleCount {
		return fmt.Errorf("reseed with %d particles, buffer holds %d", len(particles), b.ParticleCount)
	}
	ctx.Queue.WriteBuffer(b.Particles, 0, wgpu.ToBytes(particles))
	return nil
}

// Release frees all buffers. Safe on partially-constructed sets.
func (b *Buffers) Release() {
	for _, buf := range []*wgpu.Buffer{
		b.Particles, b.Uniform, b.Lookup, b.Offsets, b.SortParams, b.Staging,
	} {
		if buf != nil {
			buf.Release()
		}
	}
}
