package geo

import (
	"context"
	"fmt"
	"math"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewLocation validates latitude/longitude bounds before constructing.
func NewLocation(lat, lon float64) (Location, error) {
	l := Location{Lat: lat, Lon: lon}
	if err := l.Validate(); err != nil {
		return Location{}, err
	}
	return l, nil
}

func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %f out of bounds [-90, 90]", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %f out of bounds [-180, 180]", l.Lon)
	}
	return nil
}

// Candidate is a driver position returned by a proximity query.
type Candidate struct {
	DriverID       string
	Location       Location
	DistanceMeters float64
}

// Index is the spatially-queryable driver position store consumed by the
// closest-driver finder.
type Index interface {
	// Upsert records or moves a driver position.
	Upsert(ctx context.Context, driverID string, loc Location) error
	// Remove drops a driver from the index (e.g. when going offline).
	Remove(ctx context.Context, driverID string) error
	// Nearby returns up to limit drivers within radiusMeters of loc,
	// closest first.
	Nearby(ctx context.Context, loc Location, radiusMeters float64, limit int) ([]Candidate, error)
}

// Haversine distance in meters between two coordinates.
func Haversine(a, b Location) float64 {
	const R = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
