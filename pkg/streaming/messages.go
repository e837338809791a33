// Package streaming defines the JSON envelopes exchanged with map clients over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/vmap/mapviewer/pkg/core"
)

// Client to server message types.
const (
	TypeMapClick      = "map_click"
	TypePointerMove   = "pointer_move"
	TypeCloserClick   = "closer_click"
	TypePosition      = "position"
	TypePositionError = "position_error"
	TypeAddMarker     = "add_marker"
	TypeRemoveMarker  = "remove_marker"
)

// Server to client message types.
const (
	TypePopupPosition   = "popup_position"
	TypePopupContent    = "popup_content"
	TypeMarkers         = "markers"
	TypeView            = "view"
	TypeRequestPosition = "request_position"
	TypeAck             = "ack"
	TypeError           = "error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage acknowledges an inbound message. ID carries the marker id
// assigned by add_marker.
type AckMessage struct {
	Type string        `json:"type"` // always "ack"
	For  string        `json:"for"`
	ID   core.MarkerID `json:"id,omitempty"`
}

// ErrorMessage reports a rejected inbound message.
type ErrorMessage struct {
	Type    string `json:"type"` // always "error"
	For     string `json:"for,omitempty"`
	Message string `json:"message"`
}

// PixelPayload carries a viewport position for map_click and pointer_move.
// Width and Height, when set, are the client's current viewport size.
type PixelPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// PositionPayload is a device position reported by the client.
type PositionPayload struct {
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

// PositionErrorPayload mirrors the browser's GeolocationPositionError.
// Code 0 means the capability is missing altogether.
type PositionErrorPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// AddMarkerPayload requests a marker at a geographic position. Style is
// "user" or "generic"; empty means generic.
type AddMarkerPayload struct {
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Label string  `json:"label"`
	Style string  `json:"style,omitempty"`
}

// RemoveMarkerPayload names the marker to remove.
type RemoveMarkerPayload struct {
	ID core.MarkerID `json:"id"`
}

// PopupPositionPayload places or hides the popup overlay.
type PopupPositionPayload struct {
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// PopupContentPayload replaces the popup body.
type PopupContentPayload struct {
	HTML string `json:"html"`
}

// ViewPayload describes the camera. Center is geographic; Duration is the
// animation length in milliseconds, 0 for a jump.
type ViewPayload struct {
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Zoom     float64 `json:"zoom"`
	MinZoom  float64 `json:"minZoom"`
	MaxZoom  float64 `json:"maxZoom"`
	Duration int64   `json:"duration"`
}

// NewEnvelope marshals payload under the given type.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
