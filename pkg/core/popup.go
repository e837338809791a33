// pkg/core/popup.go
package core

// PopupState is either hidden (Visible false, other fields zero) or shown
// for a single marker at a screen position.
type PopupState struct {
	Visible  bool     `json:"visible"`
	MarkerID MarkerID `json:"markerId,omitempty"`
	Position Pixel    `json:"position"`
}

// Hidden is the popup's initial state.
var Hidden = PopupState{}

// Shown builds the state for a popup anchored to marker id at pos.
func Shown(id MarkerID, pos Pixel) PopupState {
	return PopupState{Visible: true, MarkerID: id, Position: pos}
}
