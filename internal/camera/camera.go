// Package camera owns the map view and its animated transitions.
package camera

import (
	"sync"
	"time"

	"github.com/vmap/mapviewer/internal/geo"
	"github.com/vmap/mapviewer/pkg/core"
)

// Camera holds the logical view. Only MoveTo and SetView change it.
//
// Overlapping MoveTo calls are not queued: the later call wins and starts
// from wherever the earlier animation had got to.
type Camera struct {
	mu  sync.Mutex
	now func() time.Time

	from     core.ViewState
	to       core.ViewState
	start    time.Time
	duration time.Duration
}

// New creates a camera resting at initial. A nil clock uses time.Now.
func New(initial core.ViewState, now func() time.Time) *Camera {
	if now == nil {
		now = time.Now
	}
	v := normalize(initial, initial.Center, initial.Zoom)
	return &Camera{now: now, from: v, to: v}
}

// MoveTo starts a transition to coord at zoom lasting d. A d of zero or less
// jumps immediately. The returned state is the clamped destination.
func (c *Camera) MoveTo(coord core.Coordinate, zoom float64, d time.Duration) core.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	current := c.viewAt(now)
	target := normalize(current, coord, zoom)

	c.from = current
	c.to = target
	c.start = now
	c.duration = d
	if d <= 0 {
		c.from = target
		c.duration = 0
	}
	return target
}

// SetView replaces the view, including its zoom range and bounds, and stops
// any running animation.
func (c *Camera) SetView(v core.ViewState) core.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	v = normalize(v, v.Center, v.Zoom)
	c.from = v
	c.to = v
	c.duration = 0
	return v
}

// View returns the logical view at the current time.
func (c *Camera) View() core.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewAt(c.now())
}

// Target returns where the camera is heading (or resting).
func (c *Camera) Target() core.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.to
}

// Animating reports whether a transition is still in progress.
func (c *Camera) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration > 0 && c.now().Sub(c.start) < c.duration
}

func (c *Camera) viewAt(now time.Time) core.ViewState {
	if c.duration <= 0 {
		return c.to
	}
	elapsed := now.Sub(c.start)
	if elapsed >= c.duration {
		return c.to
	}
	if elapsed <= 0 {
		return c.from
	}
	t := float64(elapsed) / float64(c.duration)
	v := c.to
	v.Center = core.Projected(
		lerp(c.from.Center.X, c.to.Center.X, t),
		lerp(c.from.Center.Y, c.to.Center.Y, t),
	)
	v.Zoom = lerp(c.from.Zoom, c.to.Zoom, t)
	return v
}

// normalize applies base's constraints to a candidate center and zoom.
func normalize(base core.ViewState, center core.Coordinate, zoom float64) core.ViewState {
	v := base
	p := geo.ToProjected(center)
	if v.Bounds != nil {
		p.X, p.Y = v.Bounds.Clamp(p.X, p.Y)
	}
	v.Center = p
	v.Zoom = v.ClampZoom(zoom)
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
