package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/wavetank-dev/wavetank/render"
	"github.com/wavetank-dev/wavetank/sim"
	"github.com/wavetank-dev/wavetank/telemetry"
)

// nudgeStep is the relative change applied per tunable-adjustment keypress.
const nudgeStep = 1.1

func (a *App) runWindowed() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err := glfw.CreateWindow(a.cfg.Screen.Width, a.cfg.Screen.Height, "wavetank", nil, nil)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	defer window.Destroy()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	ctx, err := sim.NewContext(instance, surface)
	// NewContext owns the instance from here, including on failure.
	if err != nil {
		surface.Release()
		return fmt.Errorf("windowed setup: %w", err)
	}
	a.ctx = ctx
	defer func() {
		surface.Release()
		ctx.Release()
	}()

	caps := surface.GetCapabilities(ctx.Adapter)
	format := caps.Formats[0]
	surface.Configure(ctx.Adapter, ctx.Device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(a.cfg.Screen.Width),
		Height:      uint32(a.cfg.Screen.Height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	})

	if err := a.setupSimulation(); err != nil {
		return err
	}
	defer a.teardown()

	sprites, err := render.NewSpriteRenderer(ctx, a.simulation.Buffers(), format)
	if err != nil {
		return err
	}
	defer sprites.Release()

	a.installInput(window)

	slog.Info("starting windowed simulation",
		"seed", a.opts.Seed,
		"width", a.cfg.Screen.Width,
		"height", a.cfg.Screen.Height,
		"particles", a.cfg.Particles.Count,
	)

	frameBudget := time.Second / time.Duration(a.cfg.Screen.TargetFPS)
	for !window.ShouldClose() {
		frameStart := time.Now()
		glfw.PollEvents()

		a.perf.StartFrame()
		if !a.paused {
			a.perf.StartPhase(telemetry.PhaseUniforms)
			a.frameConfig.ViewProj = a.cam.ViewProj()

			a.perf.StartPhase(telemetry.PhaseSubmit)
			if err := a.simulation.Step(a.frameConfig); err != nil {
				return fmt.Errorf("frame %d: %w", a.simulation.FrameCount(), err)
			}
			if err := a.afterFrame(); err != nil {
				return err
			}
		}

		a.perf.StartPhase(telemetry.PhaseRender)
		if err := a.renderFrame(surface, sprites); err != nil {
			return err
		}
		a.perf.EndFrame()
		a.perf.RecordPresent()

		if a.opts.MaxFrames > 0 && int(a.simulation.FrameCount()) >= a.opts.MaxFrames {
			slog.Info("max frames reached", "frame", a.simulation.FrameCount())
			return nil
		}

		// Fifo presentation usually paces us; this keeps pause cheap.
		if elapsed := time.Since(frameStart); elapsed < frameBudget {
			time.Sleep(frameBudget - elapsed)
		}
	}
	return nil
}

func (a *App) renderFrame(surface *wgpu.Surface, sprites *render.SpriteRenderer) error {
	texture, err := surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquiring surface texture: %w", err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return fmt.Errorf("creating surface view: %w", err)
	}

	encoder, err := a.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		texture.Release()
		return fmt.Errorf("creating render encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.02, G: 0.03, B: 0.06, A: 1.0},
		}},
	})
	sprites.Draw(pass)
	pass.End()
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		view.Release()
		texture.Release()
		return fmt.Errorf("encoding render pass: %w", err)
	}
	a.ctx.Queue.Submit(cmd)
	cmd.Release()
	encoder.Release()

	surface.Present()
	view.Release()
	texture.Release()
	return nil
}

// installInput wires keyboard and mouse controls:
// space pauses, G toggles gravity, N reseeds, C resets the camera,
// up/down scale pressure, left/right scale viscosity, drag pans, scroll zooms.
func (a *App) installInput(window *glfw.Window) {
	var dragging bool
	var lastX, lastY float64

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			a.paused = !a.paused
			slog.Info("pause toggled", "paused", a.paused)
		case glfw.KeyG:
			if a.frameConfig.Gravity != 0 {
				a.frameConfig.Gravity = 0
			} else {
				a.frameConfig.Gravity = a.baseGravity
			}
			slog.Info("gravity toggled", "gravity", a.frameConfig.Gravity)
		case glfw.KeyN:
			seed := time.Now().UnixNano()
			if err := a.simulation.Reseed(seed); err != nil {
				slog.Error("reseed failed", "error", err)
			}
			a.windowStartFrame = 0
		case glfw.KeyC:
			a.cam.Reset()
		case glfw.KeyUp:
			a.frameConfig.PressureMultiplier *= nudgeStep
			slog.Info("pressure multiplier", "value", a.frameConfig.PressureMultiplier)
		case glfw.KeyDown:
			a.frameConfig.PressureMultiplier /= nudgeStep
			slog.Info("pressure multiplier", "value", a.frameConfig.PressureMultiplier)
		case glfw.KeyRight:
			a.frameConfig.ViscosityStrength *= nudgeStep
			slog.Info("viscosity strength", "value", a.frameConfig.ViscosityStrength)
		case glfw.KeyLeft:
			a.frameConfig.ViscosityStrength /= nudgeStep
			slog.Info("viscosity strength", "value", a.frameConfig.ViscosityStrength)
		}
	})

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		if action == glfw.Press {
			dragging = true
			lastX, lastY = w.GetCursorPos()
		} else if action == glfw.Release {
			dragging = false
		}
	})

	window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if !dragging {
			return
		}
		a.cam.Pan(float32(lastX-x), float32(lastY-y))
		lastX, lastY = x, y
	})

	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if yoff > 0 {
			a.cam.ZoomBy(1.1)
		} else if yoff < 0 {
			a.cam.ZoomBy(1 / 1.1)
		}
	})
}
