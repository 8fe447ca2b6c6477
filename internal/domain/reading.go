package domain

import "time"

// LocationReading is the transient location input delivered by the messaging
// channel. Every field is optional on the wire; a reading without latitude or
// longitude is rejected before any other check.
type LocationReading struct {
	Latitude               *float64 `json:"latitude"`
	Longitude              *float64 `json:"longitude"`
	AccuracyMeters         *float64 `json:"accuracy_meters,omitempty"`
	CapturedAtEpochSeconds *int64   `json:"captured_at,omitempty"`
}

// Coordinates returns the latitude/longitude pair and whether both are present.
func (r LocationReading) Coordinates() (lat, lng float64, ok bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return 0, 0, false
	}
	return *r.Latitude, *r.Longitude, true
}

// CapturedAt converts the epoch timestamp to a time, or nil when absent.
func (r LocationReading) CapturedAt() *time.Time {
	if r.CapturedAtEpochSeconds == nil {
		return nil
	}
	t := time.Unix(*r.CapturedAtEpochSeconds, 0).UTC()
	return &t
}
