package sim

import (
	"testing"
	"unsafe"
)

// The Go structs are uploaded to the GPU verbatim, so their memory layout
// must match the WGSL declarations exactly.

func TestParticleLayout(t *testing.T) {
	if size := unsafe.Sizeof(Particle{}); size != ParticleStride {
		t.Fatalf("Particle size %d, want %d", size, ParticleStride)
	}

	var p Particle
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Position", unsafe.Offsetof(p.Position), 0},
		{"Velocity", unsafe.Offsetof(p.Velocity), 8},
		{"PredictedPosition", unsafe.Offsetof(p.PredictedPosition), 16},
		{"Density", unsafe.Offsetof(p.Density), 24},
		{"NearDensity", unsafe.Offsetof(p.NearDensity), 28},
		{"Color", unsafe.Offsetof(p.Color), 32},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("%s at offset %d, want %d", o.name, o.got, o.want)
		}
	}
}

func TestUniformsLayout(t *testing.T) {
	if size := unsafe.Sizeof(Uniforms{}); size != UniformsStride {
		t.Fatalf("Uniforms size %d, want %d", size, UniformsStride)
	}

	var u Uniforms
	// The vec4 and mat4 fields must sit at 16-byte aligned offsets for WGSL.
	if off := unsafe.Offsetof(u.ScreenBounds); off != 48 {
		t.Errorf("ScreenBounds at offset %d, want 48", off)
	}
	if off := unsafe.Offsetof(u.KernelNorms); off != 64 {
		t.Errorf("KernelNorms at offset %d, want 64", off)
	}
	if off := unsafe.Offsetof(u.ViewProj); off != 80 {
		t.Errorf("ViewProj at offset %d, want 80", off)
	}
}

func TestSortStepParamsLayout(t *testing.T) {
	if size := unsafe.Sizeof(SortStepParams{}); size != sortStepParamsSize {
		t.Fatalf("SortStepParams size %d, want %d", size, sortStepParamsSize)
	}
}

func TestLookupEntryLayout(t *testing.T) {
	if size := unsafe.Sizeof(LookupEntry{}); size != lookupEntryStride {
		t.Fatalf("LookupEntry size %d, want %d", size, lookupEntryStride)
	}
}
