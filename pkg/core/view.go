// pkg/core/view.go
package core

// Pixel is a screen position, origin top-left, y growing downwards.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PixelExtent is the screen box a rendered marker occupies. Bounds are inclusive.
type PixelExtent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Empty reports whether the extent covers no area.
func (e PixelExtent) Empty() bool {
	return e.MaxX <= e.MinX || e.MaxY <= e.MinY
}

// Contains reports whether p lies inside a non-empty extent.
func (e PixelExtent) Contains(p Pixel) bool {
	if e.Empty() {
		return false
	}
	return p.X >= e.MinX && p.X <= e.MaxX && p.Y >= e.MinY && p.Y <= e.MaxY
}

// ViewState is the camera's logical position. Center is always projected.
type ViewState struct {
	Center  Coordinate `json:"center"`
	Zoom    float64    `json:"zoom"`
	MinZoom float64    `json:"minZoom"`
	MaxZoom float64    `json:"maxZoom"`
	Bounds  *Extent    `json:"bounds,omitempty"`
}

// ClampZoom limits z to the view's zoom range. A zero MaxZoom means unbounded.
func (v ViewState) ClampZoom(z float64) float64 {
	if z < v.MinZoom {
		z = v.MinZoom
	}
	if v.MaxZoom > 0 && z > v.MaxZoom {
		z = v.MaxZoom
	}
	return z
}
