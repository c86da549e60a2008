package sim

import (
	"fmt"
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"
)

// Context owns the GPU handles every other piece of the simulation needs.
// Allocation failures here abort the session; nothing downstream can run
// without a device.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

// NewContext requests an adapter and device. Both arguments may be nil for
// headless use; a windowed caller passes the instance its surface was created
// from, so the adapter is chosen for compatibility. The Context owns the
// instance either way and releases it.
func NewContext(instance *wgpu.Instance, surface *wgpu.Surface) (*Context, error) {
	if instance == nil {
		instance = wgpu.CreateInstance(nil)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("requesting adapter: %w", err)
	}

	info := adapter.GetInfo()
	slog.Info("gpu adapter acquired", "name", info.Name, "backend", info.BackendType)

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "fluid_device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("requesting device: %w", err)
	}

	return &Context{
		Instance: instance,
		Adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
	}, nil
}

// Release frees the GPU handles in reverse acquisition order.
func (c *Context) Release() {
	if c.Device != nil {
		c.Device.Release()
	}
	if c.Adapter != nil {
		c.Adapter.Release()
	}
	if c.Instance != nil {
		c.Instance.Release()
	}
}
