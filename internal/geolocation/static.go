package geolocation

import (
	"context"

	"github.com/vmap/mapviewer/pkg/core"
)

// StaticProvider always reports the same position.
type StaticProvider struct {
	Position core.Coordinate
}

// GetCurrentPosition implements Provider.
func (p StaticProvider) GetCurrentPosition(_ context.Context, success func(core.Coordinate), _ func(error)) {
	success(p.Position)
}
