// Package render draws the particle population as instanced sprites.
// It reads the simulation's particle and config buffers but never writes them.
package render

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/wavetank-dev/wavetank/sim"
)

//go:embed shaders/particles.wgsl
var particlesWGSL string

// One quad as two triangles: x, y, u, v per vertex.
var quadVertices = []float32{
	-0.5, -0.5, 0.0, 1.0,
	0.5, -0.5, 1.0, 1.0,
	-0.5, 0.5, 0.0, 0.0,
	0.5, -0.5, 1.0, 1.0,
	0.5, 0.5, 1.0, 0.0,
	-0.5, 0.5, 0.0, 0.0,
}

const quadVertexCount = 6

// SpriteRenderer owns the render pipeline for particle sprites.
type SpriteRenderer struct {
	pipeline     *wgpu.RenderPipeline
	bindGroup    *wgpu.BindGroup
	layout       *wgpu.BindGroupLayout
	vertexBuffer *wgpu.Buffer

	particleCount uint32
}

// NewSpriteRenderer builds the sprite pipeline targeting the given surface
// format, bound to the simulation's particle and config buffers.
func NewSpriteRenderer(ctx *sim.Context, buffers *sim.Buffers, format wgpu.TextureFormat) (*SpriteRenderer, error) {
	module, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "particle_sprites_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: particlesWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("compiling sprite shader: %w", err)
	}
	defer module.Release()

	r := &SpriteRenderer{particleCount: buffers.ParticleCount}

	r.vertexBuffer, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "quad_vertex_buffer",
		Size:  uint64(len(quadVertices) * 4),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating quad vertex buffer: %w", err)
	}
	ctx.Queue.WriteBuffer(r.vertexBuffer, 0, wgpu.ToBytes(quadVertices))

	r.layout, err = ctx.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "sprite_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("creating sprite bind group layout: %w", err)
	}

	r.bindGroup, err = ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "sprite_bind_group",
		Layout: r.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buffers.Particles, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: buffers.Uniform, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("creating sprite bind group: %w", err)
	}

	pipelineLayout, err := ctx.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "sprite_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.layout},
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("creating sprite pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	r.pipeline, err = ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "particle_sprites",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: 16,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("creating sprite pipeline: %w", err)
	}

	return r, nil
}

// Draw records the instanced sprite draw into an open render pass.
func (r *SpriteRenderer) Draw(pass *wgpu.RenderPassEncoder) {
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.bindGroup, nil)
	pass.SetVertexBuffer(0, r.vertexBuffer, 0, wgpu.WholeSize)
	pass.Draw(quadVertexCount, r.particleCount, 0, 0)
}

// Release frees the renderer's GPU resources.
func (r *SpriteRenderer) Release() {
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.bindGroup != nil {
		r.bindGroup.Release()
	}
	if r.layout != nil {
		r.layout.Release()
	}
	if r.vertexBuffer != nil {
		r.vertexBuffer.Release()
	}
}
