package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/vmap/mapviewer/pkg/core"
)

// MarkerFeature converts a marker into a GeoJSON feature. The label and style
// travel as properties so clients can draw without a second lookup.
func MarkerFeature(m core.Marker) (geom.GeoJSONFeature, error) {
	pt, err := Point(m.Position)
	if err != nil {
		return geom.GeoJSONFeature{}, fmt.Errorf("marker %d: %w", m.ID, err)
	}
	return geom.GeoJSONFeature{
		Geometry: pt.AsGeometry(),
		ID:       uint(m.ID),
		Properties: map[string]interface{}{
			"name":  m.Label,
			"style": m.Style.String(),
		},
	}, nil
}

// MarkersGeoJSON encodes markers as a GeoJSON FeatureCollection.
func MarkersGeoJSON(markers []core.Marker) (json.RawMessage, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(markers))
	for _, m := range markers {
		f, err := MarkerFeature(m)
		if err != nil {
			return nil, err
		}
		fc = append(fc, f)
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode markers as GeoJSON: %w", err)
	}
	return data, nil
}
