package geolocation

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/vmap/mapviewer/pkg/core"
)

// ErrNoLocation is returned when the database has no coordinates for an address.
var ErrNoLocation = errors.New("no location for address")

type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIPProvider locates an IP address with a MaxMind GeoLite2/GeoIP2 City database.
type GeoIPProvider struct {
	db     cityLookup
	closer func() error
	ip     net.IP
}

// OpenGeoIP opens the database at path and resolves ip on every request.
func OpenGeoIP(path, ip string) (*GeoIPProvider, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("invalid IP address %q", ip)
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &GeoIPProvider{db: reader, closer: reader.Close, ip: addr}, nil
}

// ForIP returns a provider sharing the same database but resolving another address.
func (p *GeoIPProvider) ForIP(ip net.IP) *GeoIPProvider {
	return &GeoIPProvider{db: p.db, ip: ip}
}

// Close releases the database. Providers derived with ForIP do not own it.
func (p *GeoIPProvider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// GetCurrentPosition implements Provider.
func (p *GeoIPProvider) GetCurrentPosition(ctx context.Context, success func(core.Coordinate), failure func(error)) {
	if err := ctx.Err(); err != nil {
		failure(err)
		return
	}
	city, err := p.db.City(p.ip)
	if err != nil {
		failure(fmt.Errorf("geoip lookup %s: %w", p.ip, err))
		return
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 && city.Location.AccuracyRadius == 0 {
		failure(fmt.Errorf("%w: %s", ErrNoLocation, p.ip))
		return
	}
	success(core.LonLat(city.Location.Longitude, city.Location.Latitude))
}
