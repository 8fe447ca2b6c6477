// Package geofence authorizes a coordinate against a static, ordered list of
// named circular zones.
//
// Zones are scanned in configured order and the first zone whose distance is
// within its own radius wins. This is first-match, not nearest-match: when
// radii overlap the earlier zone is returned even if a later one is closer.
// When no zone matches, the globally nearest zone is reported for diagnostics.
package geofence

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// EarthRadiusKm is the sphere radius used by the haversine formula.
const EarthRadiusKm = 6371.0

var (
	// ErrNoZones is returned when a Fence is built without zones.
	ErrNoZones = errors.New("geofence: at least one zone is required")
	// ErrInvalidZone is returned for zones with bad coordinates or radius.
	ErrInvalidZone = errors.New("geofence: invalid zone")
)

// Zone is a named circle. RadiusMeters is per zone and respected as given.
type Zone struct {
	ID           string  `json:"id"            yaml:"id"`
	Name         string  `json:"name"          yaml:"name"`
	Lat          float64 `json:"lat"           yaml:"lat"`
	Lng          float64 `json:"lng"           yaml:"lng"`
	RadiusMeters float64 `json:"radius_meters" yaml:"radius_meters"`
}

// Result is the outcome of Authorize.
//
// When Authorized is true, Zone is the first matching zone and DistanceMeters
// is the distance to its center. Otherwise Nearest is the closest zone overall
// and DistanceMeters the distance to it.
type Result struct {
	Authorized     bool  `json:"authorized"`
	Zone           *Zone `json:"zone,omitempty"`
	Nearest        *Zone `json:"nearest_zone,omitempty"`
	DistanceMeters int   `json:"distance_meters"`
}

// Fence is an immutable zone list. It is safe for concurrent use.
type Fence struct {
	zones []Zone
}

// New validates zones and returns a Fence preserving their order.
func New(zones []Zone) (*Fence, error) {
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	out := make([]Zone, len(zones))
	for i, z := range zones {
		if err := validateZone(z); err != nil {
			return nil, fmt.Errorf("zone %d (%q): %w", i, z.Name, err)
		}
		out[i] = z
	}
	return &Fence{zones: out}, nil
}

// Zones returns a copy of the configured zones in order.
func (f *Fence) Zones() []Zone {
	out := make([]Zone, len(f.zones))
	copy(out, f.zones)
	return out
}

// Authorize checks (lat, lng) against the zones.
func (f *Fence) Authorize(lat, lng float64) Result {
	var (
		nearest     int
		nearestDist = math.Inf(1)
	)
	for i := range f.zones {
		z := &f.zones[i]
		d := Distance(lat, lng, z.Lat, z.Lng)
		if math.Round(d) <= z.RadiusMeters {
			zone := *z
			return Result{Authorized: true, Zone: &zone, DistanceMeters: roundMeters(d)}
		}
		if d < nearestDist {
			nearest, nearestDist = i, d
		}
	}
	zone := f.zones[nearest]
	return Result{Authorized: false, Nearest: &zone, DistanceMeters: roundMeters(nearestDist)}
}

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := toRad(lat1)
	p2 := toRad(lat2)
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(p1)*math.Cos(p2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * 1000 * c
}

// DistanceMeters is Distance rounded to the nearest meter.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) int {
	return roundMeters(Distance(lat1, lng1, lat2, lng2))
}

func roundMeters(d float64) int { return int(math.Round(d)) }

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func validateZone(z Zone) error {
	switch {
	case strings.TrimSpace(z.Name) == "":
		return fmt.Errorf("%w: name must not be empty", ErrInvalidZone)
	case z.Lat < -90 || z.Lat > 90:
		return fmt.Errorf("%w: latitude out of range", ErrInvalidZone)
	case z.Lng < -180 || z.Lng > 180:
		return fmt.Errorf("%w: longitude out of range", ErrInvalidZone)
	case z.RadiusMeters <= 0:
		return fmt.Errorf("%w: radius must be > 0", ErrInvalidZone)
	}
	return nil
}
