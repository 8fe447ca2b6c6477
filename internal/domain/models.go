// Package domain defines the persistence models and shared value types of the
// attendance service. AttendanceRecord and EventReceipt are mapped with GORM;
// the remaining types are transient values passed between the geofence, fraud,
// risk, employee, and services packages.
package domain

import (
	"strings"
	"time"
)

// ActionType is the attendance action an employee attempts.
type ActionType string

const (
	ActionEntrada ActionType = "entrada"
	ActionSalida  ActionType = "salida"
)

// ParseAction maps a normalized command to an ActionType.
func ParseAction(s string) (ActionType, bool) {
	switch ActionType(strings.ToLower(strings.TrimSpace(s))) {
	case ActionEntrada:
		return ActionEntrada, true
	case ActionSalida:
		return ActionSalida, true
	}
	return "", false
}

// Valid reports whether a is one of the known actions.
func (a ActionType) Valid() bool { return a == ActionEntrada || a == ActionSalida }

// ValidationStatus is the persisted outcome of a check-in/out attempt.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "VALID"
	StatusInvalid ValidationStatus = "INVALID"
)

// AttendanceRecord is a write-once row describing one validated (or rejected)
// attendance attempt. Both accepted and rejected attempts are stored.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: messaging user id; indexed with RecordedAt for "last"/"today" queries.
//   - ActionType: "entrada" or "salida" (enforced by DB constraint).
//   - Latitude / Longitude: the submitted coordinate.
//   - ZoneName: matched zone, nil when the geofence rejected the reading.
//   - DistanceMeters: distance to the matched zone (or the nearest one).
//   - ValidationStatus: VALID or INVALID.
//   - AccuracyMeters / GPSTimestamp: reading metadata when supplied.
//   - RiskLevel / Flags: audit trail of the fraud evaluation.
//   - RecordedAt: server time of the write.
type AttendanceRecord struct {
	ID               string           `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID           string           `json:"user_id"           gorm:"type:varchar(64);not null;index:idx_user_attendance,priority:1"`
	ActionType       ActionType       `json:"action_type"       gorm:"type:varchar(16);not null;check:action_type IN ('entrada','salida')"`
	Latitude         float64          `json:"latitude"          gorm:"not null"`
	Longitude        float64          `json:"longitude"         gorm:"not null"`
	ZoneName         *string          `json:"zone_name,omitempty" gorm:"type:varchar(255)"`
	DistanceMeters   int              `json:"distance_meters"   gorm:"not null"`
	ValidationStatus ValidationStatus `json:"validation_status" gorm:"type:varchar(8);not null;index;check:validation_status IN ('VALID','INVALID')"`
	AccuracyMeters   *float64         `json:"accuracy_meters,omitempty"`
	GPSTimestamp     *time.Time       `json:"gps_timestamp,omitempty"`
	RiskLevel        string           `json:"risk_level"        gorm:"type:varchar(16)"`
	Flags            string           `json:"flags,omitempty"   gorm:"type:text"`
	RecordedAt       time.Time        `json:"recorded_at"       gorm:"not null;index:idx_user_attendance,priority:2"`
}

// TableName returns the database table name for AttendanceRecord.
func (AttendanceRecord) TableName() string { return "attendance_records" }

// Validated reports whether the record counts toward attendance state.
func (r AttendanceRecord) Validated() bool { return r.ValidationStatus == StatusValid }
