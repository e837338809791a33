// Package popup drives the single marker popup overlay.
package popup

import (
	"errors"
	"html"
	"sync"

	"github.com/vmap/mapviewer/internal/hittest"
	"github.com/vmap/mapviewer/pkg/core"
)

// ErrPopupElementMissing is returned when no presenter is available to mount the popup.
var ErrPopupElementMissing = errors.New("popup element not found")

// Presenter shows the popup element. Implementations must be cheap; they are
// called on the event loop for every transition.
type Presenter interface {
	SetPosition(pos core.Pixel, visible bool)
	SetContent(html string)
}

// Renderer resolves hits and screen anchors for the current view.
type Renderer interface {
	hittest.Renderer
	PixelOf(c core.Coordinate, v core.ViewState) core.Pixel
}

// Controller is the Hidden / Shown(marker, position) state machine.
type Controller struct {
	mu        sync.Mutex
	state     core.PopupState
	presenter Presenter
	renderer  Renderer
	hits      *hittest.Tester
}

// New creates a hidden Controller. A nil presenter yields ErrPopupElementMissing.
func New(presenter Presenter, renderer Renderer) (*Controller, error) {
	if presenter == nil {
		return nil, ErrPopupElementMissing
	}
	return &Controller{
		state:     core.Hidden,
		presenter: presenter,
		renderer:  renderer,
		hits:      hittest.New(renderer),
	}, nil
}

// State returns the current popup state.
func (c *Controller) State() core.PopupState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnMapClick shows the popup for the topmost marker under pixel, or hides it
// when the click lands on empty map. Moving between markers never passes
// through Hidden.
func (c *Controller) OnMapClick(pixel core.Pixel, markers []core.Marker, v core.ViewState) core.PopupState {
	m, ok := c.hits.Test(pixel, markers, v)
	if !ok {
		return c.hide()
	}

	pos := c.renderer.PixelOf(m.Position, v)
	c.mu.Lock()
	c.state = core.Shown(m.ID, pos)
	c.mu.Unlock()

	c.presenter.SetContent(Content(m.Label))
	c.presenter.SetPosition(pos, true)
	return core.Shown(m.ID, pos)
}

// OnCloserClick hides the popup regardless of state.
func (c *Controller) OnCloserClick() core.PopupState {
	return c.hide()
}

// OnMarkerRemoved hides the popup if it is showing the removed marker.
func (c *Controller) OnMarkerRemoved(id core.MarkerID) core.PopupState {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st.Visible && st.MarkerID == id {
		return c.hide()
	}
	return st
}

// Reposition moves a shown popup to follow its marker after the view changed.
func (c *Controller) Reposition(markers []core.Marker, v core.ViewState) core.PopupState {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if !st.Visible {
		return st
	}
	for _, m := range markers {
		if m.ID != st.MarkerID {
			continue
		}
		pos := c.renderer.PixelOf(m.Position, v)
		c.mu.Lock()
		c.state = core.Shown(m.ID, pos)
		c.mu.Unlock()
		c.presenter.SetPosition(pos, true)
		return core.Shown(m.ID, pos)
	}
	// marker vanished without a removal notice
	return c.hide()
}

func (c *Controller) hide() core.PopupState {
	c.mu.Lock()
	c.state = core.Hidden
	c.mu.Unlock()
	c.presenter.SetPosition(core.Pixel{}, false)
	return core.Hidden
}

// Content renders a marker label as popup body HTML.
func Content(label string) string {
	return "<p>" + html.EscapeString(label) + "</p>"
}
