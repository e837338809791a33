package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/vmap/mapviewer/pkg/core"
	"github.com/wroge/wgs84"
)

// FRAME CONVERSION
// Views and screen geometry always work in 3857. Positions arrive from geolocation
// and configuration in 4326, so every boundary crossing goes through ToProjected.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// CoordinateFromString parses "x,y" into a coordinate in the given frame.
// A third component (elevation) is accepted and ignored.
func CoordinateFromString(coords string, frame core.Frame) (core.Coordinate, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 || len(coordsSplit) > 3 {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	if len(coordsSplit) == 3 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64); err != nil {
			return core.Coordinate{}, ErrInvalidCoordinates
		}
	}
	c := core.Coordinate{Frame: frame, X: x, Y: y}
	if frame == core.FrameGeographic && !ValidLonLat(c.X, c.Y) {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	return c, nil
}

// ValidLonLat reports whether lon/lat are inside the WGS84 range.
func ValidLonLat(lon, lat float64) bool {
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// ToProjected returns c in EPSG:3857. Projected input is returned unchanged.
func ToProjected(c core.Coordinate) core.Coordinate {
	if c.Frame == core.FrameProjected {
		return c
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(c.X, c.Y, 0)
	return core.Projected(x, y)
}

// ToGeographic returns c in EPSG:4326. Geographic input is returned unchanged.
func ToGeographic(c core.Coordinate) core.Coordinate {
	if c.Frame == core.FrameGeographic {
		return c
	}
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ := f(c.X, c.Y, 0)
	return core.LonLat(lon, lat)
}

// ExtentFromLonLat builds a projected extent from its south-west and north-east corners.
func ExtentFromLonLat(minLon, minLat, maxLon, maxLat float64) core.Extent {
	sw := ToProjected(core.LonLat(minLon, minLat))
	ne := ToProjected(core.LonLat(maxLon, maxLat))
	return core.Extent{MinX: sw.X, MinY: sw.Y, MaxX: ne.X, MaxY: ne.Y}
}

// Point converts c into a simplefeatures point in the geographic frame,
// the frame GeoJSON requires.
func Point(c core.Coordinate) (geom.Point, error) {
	g := ToGeographic(c)
	pt, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: g.X, Y: g.Y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("%w: %s", ErrInvalidCoordinates, err)
	}
	return pt, nil
}
