// Package hittest finds the marker drawn under a screen pixel.
package hittest

import "github.com/vmap/mapviewer/pkg/core"

// Renderer reports the screen box a marker occupies for a given view.
type Renderer interface {
	Extent(m core.Marker, v core.ViewState) core.PixelExtent
}

// HitTest returns the topmost marker whose extent contains pixel. Markers are
// drawn in slice order, so the last one added sits on top and wins overlaps.
func HitTest(pixel core.Pixel, markers []core.Marker, v core.ViewState, r Renderer) (core.Marker, bool) {
	for i := len(markers) - 1; i >= 0; i-- {
		if r.Extent(markers[i], v).Contains(pixel) {
			return markers[i], true
		}
	}
	return core.Marker{}, false
}

// Tester binds a renderer so callers only supply the pixel and scene.
type Tester struct {
	renderer Renderer
}

// New creates a Tester backed by r.
func New(r Renderer) *Tester {
	return &Tester{renderer: r}
}

// Test runs HitTest with the bound renderer.
func (t *Tester) Test(pixel core.Pixel, markers []core.Marker, v core.ViewState) (core.Marker, bool) {
	return HitTest(pixel, markers, v, t.renderer)
}
