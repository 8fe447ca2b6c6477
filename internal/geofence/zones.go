package geofence

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// zonesFile is the on-disk layout of a zones file:
//
//	zones:
//	  - id: hq
//	    name: Oficina Central
//	    lat: 19.432608
//	    lng: -99.133209
//	    radius_meters: 150
type zonesFile struct {
	Zones []Zone `yaml:"zones"`
}

// LoadZones reads an ordered zone list from a YAML file.
func LoadZones(path string) ([]Zone, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	return ParseZones(b)
}

// ParseZones decodes a YAML zone list. Unknown keys are rejected and zones
// without an id get a positional one ("zone-1", "zone-2", ...).
func ParseZones(b []byte) ([]Zone, error) {
	var f zonesFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	if len(f.Zones) == 0 {
		return nil, ErrNoZones
	}
	for i := range f.Zones {
		if f.Zones[i].ID == "" {
			f.Zones[i].ID = fmt.Sprintf("zone-%d", i+1)
		}
	}
	return f.Zones, nil
}

// DefaultZones is used when no zones file is configured.
func DefaultZones() []Zone {
	return []Zone{
		{ID: "hq", Name: "Oficina Central", Lat: 19.432608, Lng: -99.133209, RadiusMeters: 150},
		{ID: "warehouse", Name: "Almacén Norte", Lat: 19.504700, Lng: -99.146900, RadiusMeters: 250},
	}
}
