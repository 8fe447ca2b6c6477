// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for EventReceipt,
// the stored reply that makes webhook redelivery safe.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// ErrDuplicate indicates that a receipt already exists for the given
// (user_id, key) pair.
var ErrDuplicate = errors.New("duplicate")

// FindReceipt returns the receipt stored for (userID, key), expired or not,
// or ErrNotFound.
func FindReceipt(ctx context.Context, db *gorm.DB, userID, key string) (*domain.EventReceipt, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.EventReceipt
	err := db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return &rec, nil
}

// CreateReceipt inserts rec and returns ErrDuplicate on unique violation.
// A receipt for the same pair that expired by rec.CreatedAt is replaced.
func CreateReceipt(ctx context.Context, db *gorm.DB, rec *domain.EventReceipt) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND key = ? AND expires_at <= ?", rec.UserID, rec.Key, rec.CreatedAt).
			Delete(&domain.EventReceipt{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return fmt.Errorf("create receipt: %w", err)
	}
	return nil
}

// PurgeExpiredReceipts deletes receipts that expired at or before now.
func PurgeExpiredReceipts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.EventReceipt{})
	return res.RowsAffected, res.Error
}
