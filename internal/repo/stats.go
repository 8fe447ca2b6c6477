// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// AttendanceStats returns the number of records for userID and the greatest
// RecordedAt among them. When the user has no records, count is 0 and
// maxRecordedAt is nil.
func AttendanceStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxRecordedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.AttendanceRecord{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest recorded_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		RecordedAt time.Time
	}
	if err = q.Select("recorded_at").Order("recorded_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.RecordedAt, nil
}
