package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/vmap/mapviewer/internal/dispatcher"
	"github.com/vmap/mapviewer/internal/geo"
	"github.com/vmap/mapviewer/internal/geolocation"
	"github.com/vmap/mapviewer/internal/influx"
	"github.com/vmap/mapviewer/internal/popup"
	"github.com/vmap/mapviewer/pkg/core"
	"github.com/vmap/mapviewer/pkg/streaming"
)

// AddMarker is the payload of EventAddMarker. ClientID, when set, receives the ack.
type AddMarker struct {
	Marker   core.Marker
	ClientID string
}

// RemoveMarker is the payload of EventRemoveMarker.
type RemoveMarker struct {
	ID       core.MarkerID
	ClientID string
}

// Pointer is the payload of EventMapClick and EventPointerMove when the
// client also reports its viewport size. A bare core.Pixel is accepted too.
type Pointer struct {
	Pixel         core.Pixel
	Width, Height int
}

type geoOutcome struct {
	Position core.Coordinate
	Err      error
	Latency  time.Duration
}

func (s *Session) register() {
	s.dispatcher.Register(EventMapClick, s.handleMapClick, dispatcher.Logged())
	s.dispatcher.Register(EventPointerMove, s.handlePointerMove, dispatcher.Buffered(pointerBufferSize))
	s.dispatcher.Register(EventCloserClick, s.handleCloserClick, dispatcher.Logged())
	s.dispatcher.Register(EventAddMarker, s.handleAddMarker, dispatcher.Logged())
	s.dispatcher.Register(EventRemoveMarker, s.handleRemoveMarker, dispatcher.Logged())
	s.dispatcher.Register(EventGeolocationResolved, s.handleGeolocationResolved, dispatcher.Logged())
	s.dispatcher.Register(EventGeolocationFailed, s.handleGeolocationFailed, dispatcher.Logged())
	s.dispatcher.Register(EventClientConnected, s.handleClientConnected)
}

func payload[T any](e dispatcher.Event) (T, error) {
	p, ok := e.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected payload %T", e.Type, e.Payload)
	}
	return p, nil
}

// pointer extracts the pixel of a click or move and resizes the render
// viewport first when the client reported its size.
func (s *Session) pointer(e dispatcher.Event) (core.Pixel, error) {
	switch p := e.Payload.(type) {
	case core.Pixel:
		return p, nil
	case Pointer:
		if p.Width > 0 && p.Height > 0 && s.renderer.SetViewport(p.Width, p.Height) {
			s.logger.Debug("Viewport resized", "width", p.Width, "height", p.Height)
		}
		return p.Pixel, nil
	}
	return core.Pixel{}, fmt.Errorf("%s: unexpected payload %T", e.Type, e.Payload)
}

func (s *Session) handleMapClick(e dispatcher.Event) (any, error) {
	px, err := s.pointer(e)
	if err != nil {
		return nil, err
	}

	v := s.camera.View()
	ext := s.renderer.ViewExtent(v)
	s.logger.Debug("Map click", "x", px.X, "y", px.Y,
		"minX", ext.MinX, "minY", ext.MinY, "maxX", ext.MaxX, "maxY", ext.MaxY)

	if s.popup == nil {
		return core.Hidden, nil
	}

	st := s.popup.OnMapClick(px, s.registry.All(), v)

	var hit *core.Marker
	if st.Visible {
		if m, ok := s.registry.Get(st.MarkerID); ok {
			hit = &m
		}
	}
	s.record(influx.ClickPoint(s.id, px, hit, e.Timestamp))
	return st, nil
}

// handlePointerMove runs off the loop; the camera and renderer are both synchronized.
func (s *Session) handlePointerMove(e dispatcher.Event) (any, error) {
	px, err := s.pointer(e)
	if err != nil {
		return nil, err
	}
	c := s.renderer.CoordinateAt(px, s.camera.View())
	s.logger.Debug("Pointer", "x", c.X, "y", c.Y)
	return nil, nil
}

func (s *Session) handleCloserClick(dispatcher.Event) (any, error) {
	if s.popup == nil {
		return core.Hidden, nil
	}
	return s.popup.OnCloserClick(), nil
}

func (s *Session) handleAddMarker(e dispatcher.Event) (any, error) {
	req, err := payload[AddMarker](e)
	if err != nil {
		return nil, err
	}
	if req.Marker.Position.Frame == core.FrameGeographic && !geo.ValidLonLat(req.Marker.Position.X, req.Marker.Position.Y) {
		return nil, s.reject(req.ClientID, streaming.TypeAddMarker, geo.ErrInvalidCoordinates)
	}

	id := s.registry.Add(req.Marker)
	m, _ := s.registry.Get(id)
	s.logger.Info("Marker added", "id", id, "label", m.Label, "style", m.Style)

	s.broadcastMarkers()
	if req.ClientID != "" && s.out != nil {
		if err := s.out.Ack(req.ClientID, streaming.TypeAddMarker, id); err != nil {
			s.logger.Debug("Ack failed", "error", err)
		}
	}
	s.record(influx.MarkerPoint(s.id, "add", m, e.Timestamp))
	return id, nil
}

func (s *Session) handleRemoveMarker(e dispatcher.Event) (any, error) {
	req, err := payload[RemoveMarker](e)
	if err != nil {
		return nil, err
	}
	m, ok := s.registry.Get(req.ID)
	if !ok {
		return nil, s.reject(req.ClientID, streaming.TypeRemoveMarker, fmt.Errorf("%w: %d", ErrMarkerNotFound, req.ID))
	}
	s.registry.Remove(req.ID)
	s.logger.Info("Marker removed", "id", req.ID,
		"remaining", lo.Map(s.registry.All(), func(m core.Marker, _ int) core.MarkerID { return m.ID }))

	s.broadcastMarkers()
	s.record(influx.MarkerPoint(s.id, "remove", m, e.Timestamp))
	return s.Popup(), nil
}

func (s *Session) handleGeolocationResolved(e dispatcher.Event) (any, error) {
	out, err := payload[geoOutcome](e)
	if err != nil {
		return nil, err
	}

	s.locating.Store(false)
	s.located.Store(true)
	s.timedOut.Store(false)

	id := s.registry.Add(core.Marker{Position: out.Position, Label: UserMarkerLabel, Style: core.StyleUser})
	target := s.camera.MoveTo(out.Position, s.userZoom, s.animation)
	s.logger.Info("Device located", "lon", out.Position.X, "lat", out.Position.Y,
		"marker", id, "zoom", target.Zoom, "latency", out.Latency)

	s.broadcastMarkers()
	s.broadcastView(s.animation)
	if s.popup != nil {
		s.popup.Reposition(s.registry.All(), target)
	}
	s.record(influx.GeolocationPoint(s.id, out.Position, nil, out.Latency, e.Timestamp))
	return id, nil
}

func (s *Session) handleGeolocationFailed(e dispatcher.Event) (any, error) {
	out, err := payload[geoOutcome](e)
	if err != nil {
		return nil, err
	}
	s.locating.Store(false)
	s.timedOut.Store(s.client != nil && errors.Is(out.Err, context.DeadlineExceeded))

	if errors.Is(out.Err, geolocation.ErrUnsupported) {
		s.logger.Error("Geolocation is not supported", "error", out.Err)
	} else {
		s.logger.Warn("Geolocation error", "error", out.Err, "latency", out.Latency)
	}
	s.record(influx.GeolocationPoint(s.id, core.Coordinate{}, out.Err, out.Latency, e.Timestamp))
	return nil, nil
}

// handleClientConnected brings a new client up to date.
func (s *Session) handleClientConnected(e dispatcher.Event) (any, error) {
	clientID, err := payload[string](e)
	if err != nil {
		return nil, err
	}
	if s.out == nil {
		return nil, nil
	}

	raw, err := geo.MarkersGeoJSON(s.registry.All())
	if err != nil {
		return nil, err
	}
	if err := s.out.SendTo(clientID, streaming.TypeMarkers, raw); err != nil {
		return nil, err
	}
	if err := s.out.SendTo(clientID, streaming.TypeView, viewPayload(s.camera.Target(), 0)); err != nil {
		return nil, err
	}
	if st := s.Popup(); st.Visible {
		if err := s.out.SendTo(clientID, streaming.TypePopupPosition, streaming.PopupPositionPayload{
			Visible: true, X: st.Position.X, Y: st.Position.Y,
		}); err != nil {
			return nil, err
		}
		if m, ok := s.registry.Get(st.MarkerID); ok {
			_ = s.out.SendTo(clientID, streaming.TypePopupContent, streaming.PopupContentPayload{HTML: popup.Content(m.Label)})
		}
	}
	if s.client == nil {
		return nil, nil
	}
	if s.timedOut.Load() && !s.located.Load() {
		// nobody could answer the first request; this client can
		s.timedOut.Store(false)
		s.logger.Info("Retrying geolocation for new client", "client", clientID)
		s.locate(s.baseCtx)
		return nil, nil
	}
	if s.client.Pending() > 0 {
		return nil, s.out.SendTo(clientID, streaming.TypeRequestPosition, nil)
	}
	return nil, nil
}

func (s *Session) reject(clientID, msgType string, err error) error {
	if clientID != "" && s.out != nil {
		if rerr := s.out.Reject(clientID, msgType, err); rerr != nil {
			s.logger.Debug("Reject failed", "error", rerr)
		}
	}
	return err
}

func (s *Session) broadcastMarkers() {
	if s.out == nil {
		return
	}
	raw, err := geo.MarkersGeoJSON(s.registry.All())
	if err != nil {
		s.logger.Error("Failed to encode markers", "error", err)
		return
	}
	if err := s.out.Broadcast(streaming.TypeMarkers, raw); err != nil {
		s.logger.Error("Failed to broadcast markers", "error", err)
	}
}

func (s *Session) broadcastView(d time.Duration) {
	if s.out == nil {
		return
	}
	if err := s.out.Broadcast(streaming.TypeView, viewPayload(s.camera.Target(), d)); err != nil {
		s.logger.Error("Failed to broadcast view", "error", err)
	}
}

func viewPayload(v core.ViewState, d time.Duration) streaming.ViewPayload {
	c := geo.ToGeographic(v.Center)
	return streaming.ViewPayload{
		Lon:      c.X,
		Lat:      c.Y,
		Zoom:     v.Zoom,
		MinZoom:  v.MinZoom,
		MaxZoom:  v.MaxZoom,
		Duration: d.Milliseconds(),
	}
}
