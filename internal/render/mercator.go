// Package render maps web mercator positions onto the client's viewport.
package render

import (
	"math"
	"sync"

	"github.com/vmap/mapviewer/internal/geo"
	"github.com/vmap/mapviewer/pkg/core"
)

// earthCircumference is the equatorial circumference of the EPSG:3857 sphere, in metres.
const earthCircumference = 2 * math.Pi * 6378137

// Config describes the viewport and marker styles.
type Config struct {
	Width    int // viewport width in pixels
	Height   int // viewport height in pixels
	TileSize int

	// generic marker: filled circle with an outline
	CircleRadius float64
	StrokeWidth  float64

	// user marker: icon anchored at its bottom centre
	IconWidth  float64
	IconHeight float64
	IconScale  float64
}

// DefaultConfig matches the stock viewer styles.
func DefaultConfig() Config {
	return Config{
		Width:        1024,
		Height:       768,
		TileSize:     256,
		CircleRadius: 10,
		StrokeWidth:  2,
		IconWidth:    512,
		IconHeight:   512,
		IconScale:    0.06,
	}
}

// Mercator renders to a flat viewport centred on the view's center. The
// viewport size follows the client and may change between calls.
type Mercator struct {
	cfg Config

	mu     sync.RWMutex
	width  float64
	height float64
}

// NewMercator creates a renderer. Zero fields fall back to DefaultConfig.
func NewMercator(cfg Config) *Mercator {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = def.TileSize
	}
	return &Mercator{cfg: cfg, width: float64(cfg.Width), height: float64(cfg.Height)}
}

// SetViewport resizes the viewport. Non-positive sizes are ignored. It
// reports whether the size changed.
func (r *Mercator) SetViewport(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, h := float64(width), float64(height)
	if w == r.width && h == r.height {
		return false
	}
	r.width, r.height = w, h
	return true
}

// Viewport returns the current viewport size in pixels.
func (r *Mercator) Viewport() (width, height int) {
	w, h := r.size()
	return int(w), int(h)
}

func (r *Mercator) size() (float64, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.width, r.height
}

// Resolution returns metres per pixel at zoom.
func (r *Mercator) Resolution(zoom float64) float64 {
	return earthCircumference / (float64(r.cfg.TileSize) * math.Pow(2, zoom))
}

// PixelOf returns the screen position of c under view v.
func (r *Mercator) PixelOf(c core.Coordinate, v core.ViewState) core.Pixel {
	p := geo.ToProjected(c)
	center := geo.ToProjected(v.Center)
	res := r.Resolution(v.Zoom)
	w, h := r.size()
	return core.Pixel{
		X: w/2 + (p.X-center.X)/res,
		Y: h/2 - (p.Y-center.Y)/res,
	}
}

// CoordinateAt returns the projected coordinate under pixel p.
func (r *Mercator) CoordinateAt(p core.Pixel, v core.ViewState) core.Coordinate {
	center := geo.ToProjected(v.Center)
	res := r.Resolution(v.Zoom)
	w, h := r.size()
	return core.Projected(
		center.X+(p.X-w/2)*res,
		center.Y-(p.Y-h/2)*res,
	)
}

// ViewExtent returns the projected box currently visible.
func (r *Mercator) ViewExtent(v core.ViewState) core.Extent {
	w, h := r.size()
	tl := r.CoordinateAt(core.Pixel{X: 0, Y: 0}, v)
	br := r.CoordinateAt(core.Pixel{X: w, Y: h}, v)
	return core.Extent{MinX: tl.X, MinY: br.Y, MaxX: br.X, MaxY: tl.Y}
}

// Extent returns the screen box marker m occupies under view v.
func (r *Mercator) Extent(m core.Marker, v core.ViewState) core.PixelExtent {
	p := r.PixelOf(m.Position, v)
	switch m.Style {
	case core.StyleUser:
		w := r.cfg.IconWidth * r.cfg.IconScale
		h := r.cfg.IconHeight * r.cfg.IconScale
		return core.PixelExtent{MinX: p.X - w/2, MinY: p.Y - h, MaxX: p.X + w/2, MaxY: p.Y}
	default:
		half := r.cfg.CircleRadius + r.cfg.StrokeWidth/2
		return core.PixelExtent{MinX: p.X - half, MinY: p.Y - half, MaxX: p.X + half, MaxY: p.Y + half}
	}
}
