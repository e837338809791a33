// pkg/core/marker.go
package core

import "strings"

// MarkerID identifies a marker within one registry. Zero is never assigned.
type MarkerID uint

// StyleTag selects how a marker is drawn.
type StyleTag int

const (
	// StyleGeneric is the red circle used for placed points of interest.
	StyleGeneric StyleTag = iota
	// StyleUser is the icon used for the device's own location.
	StyleUser
)

// ParseStyle maps "user" (any case) to StyleUser and anything else to StyleGeneric.
func ParseStyle(name string) StyleTag {
	if strings.EqualFold(name, StyleUser.String()) {
		return StyleUser
	}
	return StyleGeneric
}

func (s StyleTag) String() string {
	if s == StyleUser {
		return "user"
	}
	return "generic"
}

// Marker is a labelled point on the map.
type Marker struct {
	ID       MarkerID   `json:"id"`
	Position Coordinate `json:"position"`
	Label    string     `json:"label"`
	Style    StyleTag   `json:"style"`
}
