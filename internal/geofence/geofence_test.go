package geofence

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDistance_IdentityAndSymmetry(t *testing.T) {
	points := [][2]float64{
		{19.432608, -99.133209},
		{40.4168, -3.7038},
		{-33.8688, 151.2093},
		{0, 0},
		{89.9, 179.9},
	}
	for _, a := range points {
		if d := Distance(a[0], a[1], a[0], a[1]); d != 0 {
			t.Fatalf("distance(a,a) = %v for %v", d, a)
		}
		for _, b := range points {
			ab := Distance(a[0], a[1], b[0], b[1])
			ba := Distance(b[0], b[1], a[0], a[1])
			if math.Abs(ab-ba) > 1e-6 {
				t.Fatalf("asymmetric distance %v vs %v for %v,%v", ab, ba, a, b)
			}
		}
	}
}

func TestDistance_KnownValue(t *testing.T) {
	// Madrid -> Barcelona is ~505 km on a 6371 km sphere.
	d := DistanceMeters(40.4168, -3.7038, 41.3874, 2.1686)
	if d < 503000 || d > 507000 {
		t.Fatalf("Madrid-Barcelona = %d m; want ~505 km", d)
	}
	// One millidegree of latitude is ~111 m.
	if got := DistanceMeters(0, 0, 0.001, 0); got != 111 {
		t.Fatalf("0.001 deg latitude = %d m; want 111", got)
	}
}

func TestAuthorize_CenterIsZeroDistance(t *testing.T) {
	f, err := New([]Zone{{ID: "hq", Name: "HQ", Lat: 19.4326, Lng: -99.1332, RadiusMeters: 100}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := f.Authorize(19.4326, -99.1332)
	if !res.Authorized || res.Zone == nil || res.Zone.ID != "hq" || res.DistanceMeters != 0 {
		t.Fatalf("center not authorized at 0 m: %+v", res)
	}
	if res.Nearest != nil {
		t.Fatalf("Nearest must be nil on a match")
	}
}

func TestAuthorize_FirstMatchWinsOverNearest(t *testing.T) {
	// Point sits on B's center but also inside A's large radius; A is listed first.
	a := Zone{ID: "a", Name: "A", Lat: 0, Lng: 0, RadiusMeters: 5000}
	b := Zone{ID: "b", Name: "B", Lat: 0.01, Lng: 0, RadiusMeters: 500}

	f, _ := New([]Zone{a, b})
	res := f.Authorize(0.01, 0)
	if !res.Authorized || res.Zone.ID != "a" {
		t.Fatalf("expected first-listed zone a, got %+v", res.Zone)
	}
	if res.DistanceMeters != DistanceMeters(0.01, 0, 0, 0) {
		t.Fatalf("distance should be to zone a, got %d", res.DistanceMeters)
	}

	f2, _ := New([]Zone{b, a})
	res = f2.Authorize(0.01, 0)
	if res.Zone.ID != "b" || res.DistanceMeters != 0 {
		t.Fatalf("reordered list should return b at 0 m, got %+v", res)
	}
}

func TestAuthorize_NoMatchReportsNearest(t *testing.T) {
	f, _ := New([]Zone{
		{ID: "far", Name: "Far", Lat: 10, Lng: 10, RadiusMeters: 100},
		{ID: "near", Name: "Near", Lat: 0.01, Lng: 0, RadiusMeters: 100},
	})
	res := f.Authorize(0, 0)
	if res.Authorized || res.Zone != nil {
		t.Fatalf("expected rejection, got %+v", res)
	}
	if res.Nearest == nil || res.Nearest.ID != "near" {
		t.Fatalf("expected nearest=near, got %+v", res.Nearest)
	}
	if res.DistanceMeters != 1112 {
		t.Fatalf("nearest distance = %d; want 1112", res.DistanceMeters)
	}
}

func TestAuthorize_RespectsPerZoneRadius(t *testing.T) {
	// ~111 m north of the center.
	small := Zone{ID: "s", Name: "Small", Lat: 0, Lng: 0, RadiusMeters: 100}
	large := Zone{ID: "l", Name: "Large", Lat: 0, Lng: 0, RadiusMeters: 120}

	f, _ := New([]Zone{small})
	if f.Authorize(0.001, 0).Authorized {
		t.Fatalf("111 m must be outside a 100 m radius")
	}
	f, _ = New([]Zone{large})
	if !f.Authorize(0.001, 0).Authorized {
		t.Fatalf("111 m must be inside a 120 m radius")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoZones) {
		t.Fatalf("expected ErrNoZones, got %v", err)
	}
	bad := []Zone{
		{Name: "", Lat: 0, Lng: 0, RadiusMeters: 1},
		{Name: "x", Lat: 91, Lng: 0, RadiusMeters: 1},
		{Name: "x", Lat: 0, Lng: -181, RadiusMeters: 1},
		{Name: "x", Lat: 0, Lng: 0, RadiusMeters: 0},
	}
	for _, z := range bad {
		if _, err := New([]Zone{z}); !errors.Is(err, ErrInvalidZone) {
			t.Fatalf("zone %+v: expected ErrInvalidZone, got %v", z, err)
		}
	}
}

func TestZones_ReturnsCopy(t *testing.T) {
	f, _ := New(DefaultZones())
	zs := f.Zones()
	zs[0].Name = "mutated"
	if f.Zones()[0].Name == "mutated" {
		t.Fatalf("Zones() must return a copy")
	}
}

func TestLoadZones_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.yaml")
	content := `zones:
  - id: hq
    name: Oficina Central
    lat: 19.432608
    lng: -99.133209
    radius_meters: 150
  - name: Almacén
    lat: 19.5047
    lng: -99.1469
    radius_meters: 250
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	zs, err := LoadZones(path)
	if err != nil {
		t.Fatalf("LoadZones: %v", err)
	}
	if len(zs) != 2 || zs[0].ID != "hq" || zs[1].ID != "zone-2" || zs[1].RadiusMeters != 250 {
		t.Fatalf("unexpected zones: %+v", zs)
	}

	if _, err := ParseZones([]byte("zones:\n  - name: x\n    radius: 5\n")); err == nil {
		t.Fatalf("unknown key must be rejected")
	}
	if _, err := ParseZones([]byte("zones: []\n")); !errors.Is(err, ErrNoZones) {
		t.Fatalf("empty list must return ErrNoZones, got %v", err)
	}
	if _, err := LoadZones(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file must error")
	}
}
