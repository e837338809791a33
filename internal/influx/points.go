package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/vmap/mapviewer/pkg/core"
)

// Measurement names.
const (
	MeasurementClick       = "map_click"
	MeasurementMarker      = "marker"
	MeasurementGeolocation = "geolocation"
)

// ClickPoint records a map click and whether it landed on a marker.
func ClickPoint(session string, px core.Pixel, hit *core.Marker, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementClick).
		AddTag("session", session).
		AddTag("hit", boolTag(hit != nil)).
		AddField("x", px.X).
		AddField("y", px.Y).
		SetTime(at)
	if hit != nil {
		p.AddTag("style", hit.Style.String()).AddField("marker_id", uint64(hit.ID))
	}
	return p
}

// MarkerPoint records a marker being added or removed.
func MarkerPoint(session, action string, m core.Marker, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementMarker).
		AddTag("session", session).
		AddTag("action", action).
		AddTag("style", m.Style.String()).
		AddField("marker_id", uint64(m.ID)).
		SetTime(at)
}

// GeolocationPoint records a resolution outcome. err is nil on success.
func GeolocationPoint(session string, pos core.Coordinate, err error, latency time.Duration, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementGeolocation).
		AddTag("session", session).
		AddTag("ok", boolTag(err == nil)).
		AddField("latency_ms", latency.Milliseconds()).
		SetTime(at)
	if err != nil {
		p.AddField("error", err.Error())
	} else {
		p.AddField("lon", pos.X).AddField("lat", pos.Y)
	}
	return p
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
