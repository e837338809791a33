package geolocation

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmap/mapviewer/pkg/core"
)

// fakeCityDB implements cityLookup for testing
type fakeCityDB struct {
	cities map[string]*geoip2.City
	err    error
}

func (f fakeCityDB) City(ip net.IP) (*geoip2.City, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.cities[ip.String()]; ok {
		return c, nil
	}
	return &geoip2.City{}, nil
}

func seoulCity() *geoip2.City {
	c := &geoip2.City{}
	c.Location.Latitude = 37.5665
	c.Location.Longitude = 126.978
	c.Location.AccuracyRadius = 50
	return c
}

func TestGeoIPProvider_Success(t *testing.T) {
	p := &GeoIPProvider{
		db: fakeCityDB{cities: map[string]*geoip2.City{"1.2.3.4": seoulCity()}},
		ip: net.ParseIP("1.2.3.4"),
	}

	res := receive(t, NewResolver(p, time.Second).Resolve(context.Background()))

	require.NoError(t, res.Err)
	assert.Equal(t, core.LonLat(126.978, 37.5665), res.Position)
}

func TestGeoIPProvider_NoLocation(t *testing.T) {
	p := &GeoIPProvider{db: fakeCityDB{}, ip: net.ParseIP("10.0.0.1")}

	res := receive(t, NewResolver(p, time.Second).Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
	assert.ErrorIs(t, res.Err, ErrNoLocation)
}

func TestGeoIPProvider_LookupError(t *testing.T) {
	p := &GeoIPProvider{db: fakeCityDB{err: errors.New("corrupt db")}, ip: net.ParseIP("1.2.3.4")}

	res := receive(t, NewResolver(p, time.Second).Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
}

func TestGeoIPProvider_ForIP(t *testing.T) {
	base := &GeoIPProvider{
		db: fakeCityDB{cities: map[string]*geoip2.City{"5.6.7.8": seoulCity()}},
		ip: net.ParseIP("1.2.3.4"),
	}

	derived := base.ForIP(net.ParseIP("5.6.7.8"))
	res := receive(t, NewResolver(derived, time.Second).Resolve(context.Background()))

	require.NoError(t, res.Err)
	assert.NoError(t, derived.Close(), "derived providers do not own the database")
}

func TestOpenGeoIP_InvalidIP(t *testing.T) {
	_, err := OpenGeoIP("/nonexistent.mmdb", "not-an-ip")
	assert.Error(t, err)
}

func TestOpenGeoIP_MissingDatabase(t *testing.T) {
	_, err := OpenGeoIP("/nonexistent/GeoLite2-City.mmdb", "1.2.3.4")
	assert.Error(t, err)
}

func TestClientProvider_Report(t *testing.T) {
	p := NewClientProvider()
	requested := make(chan struct{}, 1)
	p.OnRequest = func() { requested <- struct{}{} }

	ch := NewResolver(p, time.Second).Resolve(context.Background())
	<-requested
	require.Equal(t, 1, p.Pending())

	p.Report(core.LonLat(127, 37.5))

	res := receive(t, ch)
	require.NoError(t, res.Err)
	assert.Equal(t, core.LonLat(127, 37.5), res.Position)
	assert.Equal(t, 0, p.Pending())
}

func TestClientProvider_ReportError(t *testing.T) {
	p := NewClientProvider()
	requested := make(chan struct{}, 1)
	p.OnRequest = func() { requested <- struct{}{} }

	ch := NewResolver(p, time.Second).Resolve(context.Background())
	<-requested
	p.ReportError(CodePermissionDenied, "User denied Geolocation")

	res := receive(t, ch)
	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
	assert.Contains(t, res.Err.Error(), "User denied Geolocation")
}

func TestClientProvider_Unsupported(t *testing.T) {
	p := NewClientProvider()
	requested := make(chan struct{}, 1)
	p.OnRequest = func() { requested <- struct{}{} }

	ch := NewResolver(p, time.Second).Resolve(context.Background())
	<-requested
	p.Unsupported()

	assert.ErrorIs(t, receive(t, ch).Err, ErrUnsupported)
}

func TestClientProvider_ReportWithoutPendingIsNoop(t *testing.T) {
	p := NewClientProvider()

	assert.NotPanics(t, func() { p.Report(core.LonLat(1, 1)) })
}

func TestClientProvider_TimeoutForgetsRequest(t *testing.T) {
	p := NewClientProvider()

	res := receive(t, NewResolver(p, 30*time.Millisecond).Resolve(context.Background()))
	require.ErrorIs(t, res.Err, ErrPositionUnavailable)

	assert.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClientProvider_CancelForgetsOnlyThatRequest(t *testing.T) {
	p := NewClientProvider()
	first, cancel := context.WithCancel(context.Background())

	p.GetCurrentPosition(first, func(core.Coordinate) {}, func(error) {})
	var got core.Coordinate
	p.GetCurrentPosition(context.Background(), func(c core.Coordinate) { got = c }, func(error) {})
	require.Equal(t, 2, p.Pending())

	cancel()
	assert.Eventually(t, func() bool { return p.Pending() == 1 }, time.Second, 5*time.Millisecond)

	p.Report(core.LonLat(127, 37.5))
	assert.Equal(t, core.LonLat(127, 37.5), got)
	assert.Equal(t, 0, p.Pending())
}
