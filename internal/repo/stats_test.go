package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedRecord(t *testing.T, db *gorm.DB, id, userID string, action domain.ActionType, status domain.ValidationStatus, at time.Time) {
	t.Helper()
	rec := &domain.AttendanceRecord{
		ID: id, UserID: userID, ActionType: action, ValidationStatus: status,
		Latitude: 19.4326, Longitude: -99.1332, RecordedAt: at,
	}
	if err := InsertAttendance(context.Background(), db, rec); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestAttendanceStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := AttendanceStats(context.Background(), db, "u1"); err == nil {
		t.Fatalf("expected error due to missing attendance table")
	}
}

func TestAttendanceStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.AttendanceRecord{})
	count, maxAt, err := AttendanceStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("AttendanceStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestAttendanceStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t, &domain.AttendanceRecord{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)   // other user

	seedRecord(t, db, "r1", "u1", domain.ActionEntrada, domain.StatusValid, t1)
	seedRecord(t, db, "r2", "u1", domain.ActionSalida, domain.StatusInvalid, t2)
	seedRecord(t, db, "r3", "u2", domain.ActionEntrada, domain.StatusValid, t3)

	count, maxAt, err := AttendanceStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("AttendanceStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected max %v, got %v", t2, maxAt)
	}
}
