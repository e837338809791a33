// pkg/core/coordinate.go
package core

import "fmt"

// Frame identifies the reference frame a Coordinate is expressed in.
type Frame int

const (
	// FrameGeographic is EPSG:4326, X = longitude, Y = latitude (degrees).
	FrameGeographic Frame = iota
	// FrameProjected is EPSG:3857 web mercator, X = easting, Y = northing (metres).
	FrameProjected
)

// SRID returns the EPSG code of the frame.
func (f Frame) SRID() int {
	if f == FrameProjected {
		return 3857
	}
	return 4326
}

func (f Frame) String() string {
	switch f {
	case FrameGeographic:
		return "EPSG:4326"
	case FrameProjected:
		return "EPSG:3857"
	default:
		return fmt.Sprintf("Frame(%d)", int(f))
	}
}

// Coordinate is a point in a declared reference frame. Converting between
// frames always produces a new value; see internal/geo.
type Coordinate struct {
	Frame Frame   `json:"frame"`
	X     float64 `json:"x"` // longitude or easting
	Y     float64 `json:"y"` // latitude or northing
}

// LonLat builds a geographic coordinate.
func LonLat(lon, lat float64) Coordinate {
	return Coordinate{Frame: FrameGeographic, X: lon, Y: lat}
}

// Projected builds a web mercator coordinate.
func Projected(x, y float64) Coordinate {
	return Coordinate{Frame: FrameProjected, X: x, Y: y}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s(%g, %g)", c.Frame, c.X, c.Y)
}

// Extent is an axis-aligned box in the projected frame.
type Extent struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Clamp returns (x, y) moved to the nearest point inside the extent.
func (e Extent) Clamp(x, y float64) (float64, float64) {
	return clamp(x, e.MinX, e.MaxX), clamp(y, e.MinY, e.MaxY)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
