// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// AttendanceRecord model.
//
// Records are write-once: there is no update or delete. Timestamps are
// stored in UTC so range predicates compare correctly in SQLite, where
// DATETIME values are kept as text.
//
// Functions:
//
//   - InsertAttendance(ctx, db, rec) -> error
//     Assigns a UUID and RecordedAt when absent, then inserts.
//
//   - LastValidated(ctx, db, userID) -> *domain.AttendanceRecord, error
//     Most recent VALID record, or (nil, nil) when the user has none.
//
//   - TodayValidated(ctx, db, userID, from, to) -> []domain.AttendanceRecord, error
//     VALID records with RecordedAt in [from, to), oldest first.
//
//   - CountAttendance / ListAttendancePage
//     Paging over every record of a user, newest first.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertAttendance persists rec. ID and RecordedAt are filled in when empty.
func InsertAttendance(ctx context.Context, db *gorm.DB, rec *domain.AttendanceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC()
	if rec.GPSTimestamp != nil {
		ts := rec.GPSTimestamp.UTC()
		rec.GPSTimestamp = &ts
	}
	return db.WithContext(ctx).Create(rec).Error
}

// LastValidated returns the user's most recent VALID record, or nil when the
// user has none.
func LastValidated(ctx context.Context, db *gorm.DB, userID string) (*domain.AttendanceRecord, error) {
	var r domain.AttendanceRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND validation_status = ?", userID, domain.StatusValid).
		Order("recorded_at DESC, id DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// TodayValidated returns the user's VALID records in [from, to), oldest first.
func TodayValidated(ctx context.Context, db *gorm.DB, userID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND validation_status = ? AND recorded_at >= ? AND recorded_at < ?",
			userID, domain.StatusValid, from.UTC(), to.UTC()).
		Order("recorded_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountAttendance returns the number of records (valid or not) for userID.
func CountAttendance(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AttendanceRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListAttendancePage returns a page of the user's records, newest first.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListAttendancePage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AttendanceStore adapts the free functions to the record-store interfaces
// consumed by the service and employee packages.
type AttendanceStore struct {
	DB *gorm.DB
}

func (s AttendanceStore) InsertAttendance(ctx context.Context, rec *domain.AttendanceRecord) error {
	return InsertAttendance(ctx, s.DB, rec)
}

func (s AttendanceStore) LastValidated(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	return LastValidated(ctx, s.DB, userID)
}

func (s AttendanceStore) TodayValidated(ctx context.Context, userID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	return TodayValidated(ctx, s.DB, userID, from, to)
}
