package camera

import "testing"

func TestViewProjIdentityAtOrigin(t *testing.T) {
	c := New(800, 600)
	m := c.ViewProj()

	// Scale maps (ViewportW/2, ViewportH/2) to clip (1, 1) at zoom 1.
	if got := m[0] * 400; got != 1.0 {
		t.Errorf("x scale maps half-viewport to %g, want 1", got)
	}
	if got := m[5] * 300; got != 1.0 {
		t.Errorf("y scale maps half-viewport to %g, want 1", got)
	}
	// No translation when centered on origin.
	if m[12] != 0 || m[13] != 0 {
		t.Errorf("unexpected translation (%g, %g)", m[12], m[13])
	}
}

func TestViewProjCentersOnCamera(t *testing.T) {
	c := New(800, 600)
	c.X, c.Y = 100, -50
	m := c.ViewProj()

	// The camera center must map to clip-space origin: x*sx + tx == 0.
	if got := 100*m[0] + m[12]; got != 0 {
		t.Errorf("camera x maps to clip %g, want 0", got)
	}
	if got := -50*m[5] + m[13]; got != 0 {
		t.Errorf("camera y maps to clip %g, want 0", got)
	}
}

func TestPanAndScreenToWorldRoundTrip(t *testing.T) {
	c := New(800, 600)
	c.SetZoom(2.0)
	c.Pan(40, -30)

	// 40 px right at 2x zoom is 20 world units; screen y is inverted.
	if c.X != 20 {
		t.Errorf("X = %g, want 20", c.X)
	}
	if c.Y != 15 {
		t.Errorf("Y = %g, want 15", c.Y)
	}

	// Center of screen maps back to the camera position.
	wx, wy := c.ScreenToWorld(400, 300)
	if wx != c.X || wy != c.Y {
		t.Errorf("screen center maps to (%g, %g), want (%g, %g)", wx, wy, c.X, c.Y)
	}
}

func TestZoomClamping(t *testing.T) {
	c := New(800, 600)

	c.SetZoom(100)
	if c.Zoom != c.MaxZoom {
		t.Errorf("zoom %g not clamped to max %g", c.Zoom, c.MaxZoom)
	}
	c.SetZoom(0.001)
	if c.Zoom != c.MinZoom {
		t.Errorf("zoom %g not clamped to min %g", c.Zoom, c.MinZoom)
	}
}

func TestVisibleWorldBounds(t *testing.T) {
	c := New(800, 600)
	c.SetZoom(2.0)

	minX, minY, maxX, maxY := c.VisibleWorldBounds()
	if minX != -200 || maxX != 200 {
		t.Errorf("x bounds (%g, %g), want (-200, 200)", minX, maxX)
	}
	if minY != -150 || maxY != 150 {
		t.Errorf("y bounds (%g, %g), want (-150, 150)", minY, maxY)
	}
}

func TestReset(t *testing.T) {
	c := New(800, 600)
	c.Pan(100, 100)
	c.SetZoom(3)
	c.Reset()

	if c.X != 0 || c.Y != 0 || c.Zoom != 1.0 {
		t.Errorf("reset left camera at (%g, %g) zoom %g", c.X, c.Y, c.Zoom)
	}
}
