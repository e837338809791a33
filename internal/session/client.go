package session

import (
	"github.com/vmap/mapviewer/internal/dispatcher"
	"github.com/vmap/mapviewer/pkg/core"
	"github.com/vmap/mapviewer/pkg/streaming"
)

// HandleMessage turns a validated client message into a posted event.
// Position reports go straight to the client provider, which posts the
// geolocation outcome itself.
func (s *Session) HandleMessage(clientID string, env streaming.Envelope) error {
	switch env.Type {
	case streaming.TypeMapClick, streaming.TypePointerMove:
		p, err := streaming.DecodePayload[streaming.PixelPayload](env)
		if err != nil {
			return err
		}
		typ := EventMapClick
		if env.Type == streaming.TypePointerMove {
			typ = EventPointerMove
		}
		px := core.Pixel{X: p.X, Y: p.Y}
		if p.Width > 0 && p.Height > 0 {
			return s.Post(dispatcher.Event{Type: typ, Payload: Pointer{Pixel: px, Width: p.Width, Height: p.Height}})
		}
		return s.Post(dispatcher.Event{Type: typ, Payload: px})

	case streaming.TypeCloserClick:
		return s.Post(dispatcher.Event{Type: EventCloserClick})

	case streaming.TypeAddMarker:
		p, err := streaming.DecodePayload[streaming.AddMarkerPayload](env)
		if err != nil {
			return err
		}
		return s.Post(dispatcher.Event{Type: EventAddMarker, Payload: AddMarker{
			Marker:   core.Marker{Position: core.LonLat(p.Lon, p.Lat), Label: p.Label, Style: core.ParseStyle(p.Style)},
			ClientID: clientID,
		}})

	case streaming.TypeRemoveMarker:
		p, err := streaming.DecodePayload[streaming.RemoveMarkerPayload](env)
		if err != nil {
			return err
		}
		return s.Post(dispatcher.Event{Type: EventRemoveMarker, Payload: RemoveMarker{ID: p.ID, ClientID: clientID}})

	case streaming.TypePosition:
		p, err := streaming.DecodePayload[streaming.PositionPayload](env)
		if err != nil {
			return err
		}
		if s.client != nil {
			s.client.Report(core.LonLat(p.Lon, p.Lat))
		}
		return nil

	case streaming.TypePositionError:
		p, err := streaming.DecodePayload[streaming.PositionErrorPayload](env)
		if err != nil {
			return err
		}
		if s.client == nil {
			return nil
		}
		if p.Code == 0 {
			s.client.Unsupported()
		} else {
			s.client.ReportError(p.Code, p.Reason)
		}
		return nil
	}
	return nil
}

// ClientConnected posts an event that sends the current state to clientID.
func (s *Session) ClientConnected(clientID string) {
	if err := s.Post(dispatcher.Event{Type: EventClientConnected, Payload: clientID}); err != nil {
		s.logger.Debug("Client state not sent", "client", clientID, "error", err)
	}
}
