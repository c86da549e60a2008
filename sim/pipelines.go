package sim

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed shaders/simulation.wgsl
var simulationWGSL string

// workgroupSize matches the @workgroup_size attribute in the shader.
const workgroupSize = 16

// Pipelines holds the compiled compute pipelines and the single bind group
// shared by all five passes. Binding 4 carries the per-step sort parameters
// behind a dynamic offset.
type Pipelines struct {
	Layout    *wgpu.BindGroupLayout
	BindGroup *wgpu.BindGroup

	Bin       *wgpu.ComputePipeline
	Sort      *wgpu.ComputePipeline
	Offsets   *wgpu.ComputePipeline
	Predict   *wgpu.ComputePipeline
	Integrate *wgpu.ComputePipeline
}

// NewPipelines compiles the simulation shader and builds one compute
// pipeline per entry point over a shared layout.
func NewPipelines(ctx *Context, buffers *Buffers) (*Pipelines, error) {
	module, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "simulation_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: simulationWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("compiling simulation shader: %w", err)
	}
	defer module.Release()

	p := &Pipelines{}

	p.Layout, err = ctx.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "simulation_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 4, Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   sortStepParamsSize,
				}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating bind group layout: %w", err)
	}

	p.BindGroup, err = ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "simulation_bind_group",
		Layout: p.Layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buffers.Particles, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: buffers.Uniform, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: buffers.Lookup, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: buffers.Offsets, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: buffers.SortParams, Size: sortStepParamsSize},
		},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("creating bind group: %w", err)
	}

	pipelineLayout, err := ctx.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "simulation_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.Layout},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("creating pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	entryPoints := []struct {
		name string
		dst  **wgpu.ComputePipeline
	}{
		{"bin_particles_in_grid", &p.Bin},
		{"sort_particles", &p.Sort},
		{"calculate_spatial_lookup_offsets", &p.Offsets},
		{"pre_simulation_step", &p.Predict},
		{"simulation_step", &p.Integrate},
	}
	for _, ep := range entryPoints {
		pipeline, err := ctx.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  ep.name,
			Layout: pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: ep.name,
			},
		})
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("creating %s pipeline: %w", ep.name, err)
		}
		*ep.dst = pipeline
	}

	return p, nil
}

// Release frees the pipelines and bind group. Safe on partial construction.
func (p *Pipelines) Release() {
	for _, pl := range []*wgpu.ComputePipeline{p.Bin, p.Sort, p.Offsets, p.Predict, p.Integrate} {
		if pl != nil {
			pl.Release()
		}
	}
	if p.BindGroup != nil {
		p.BindGroup.Release()
	}
	if p.Layout != nil {
		p.Layout.Release()
	}
}
