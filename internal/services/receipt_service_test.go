package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-attendance-bot/internal/repo"
)

func newReceiptDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestReceiptService_SaveLookupDuplicate(t *testing.T) {
	s := NewReceiptService(newReceiptDB(t), time.Hour)
	ctx := context.Background()

	if _, err := s.Lookup(ctx, "u1", "evt-1"); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expected ErrReceiptNotFound, got %v", err)
	}
	if err := s.Save(ctx, "u1", "evt-1", "text", "hola", "", 200); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r, err := s.Lookup(ctx, "u1", "evt-1")
	if err != nil || r.Reply != "hola" || r.Status != 200 {
		t.Fatalf("Lookup = %+v, %v", r, err)
	}
	if err := s.Save(ctx, "u1", "evt-1", "text", "otra", "", 200); !errors.Is(err, ErrDuplicateReceipt) {
		t.Fatalf("expected ErrDuplicateReceipt, got %v", err)
	}
	if _, err := s.Lookup(ctx, "u2", "evt-1"); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("receipts are scoped per user, got %v", err)
	}
}

func TestReceiptService_ExpiredIsNotReplayedAndPurged(t *testing.T) {
	s := NewReceiptService(newReceiptDB(t), time.Hour)
	ctx := context.Background()
	if err := s.Save(ctx, "u1", "evt-1", "text", "hola", "", 200); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s.Clock = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Lookup(ctx, "u1", "evt-1"); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expired receipt must not be returned, got %v", err)
	}
	n, err := s.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Purge = %d, %v; want 1", n, err)
	}
}

func TestNewReceiptService_DefaultTTL(t *testing.T) {
	if s := NewReceiptService(nil, 0); s.TTL != DefaultReceiptTTL {
		t.Fatalf("TTL = %v; want %v", s.TTL, DefaultReceiptTTL)
	}
}

func TestReceiptService_ExpiredKeyCanBeReused(t *testing.T) {
	s := NewReceiptService(newReceiptDB(t), time.Hour)
	ctx := context.Background()
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	s.Clock = func() time.Time { return base }
	if err := s.Save(ctx, "u1", "evt-1", "text", "primera", "", 200); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Clock = func() time.Time { return base.Add(90 * time.Minute) }
	if err := s.Save(ctx, "u1", "evt-1", "text", "segunda", "", 200); err != nil {
		t.Fatalf("expired key must be reusable: %v", err)
	}
	r, err := s.Lookup(ctx, "u1", "evt-1")
	if err != nil || r.Reply != "segunda" {
		t.Fatalf("Lookup = %+v, %v", r, err)
	}
}
