// Package services – ReceiptService
//
// ReceiptService stores the reply produced for a messaging-channel event so
// that a redelivered event (same user, same event key) gets the original
// reply back without re-running side effects.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/repo"
)

// DefaultReceiptTTL is how long a reply stays replayable.
const DefaultReceiptTTL = 24 * time.Hour

// ReceiptService provides lookup and storage of event receipts.
type ReceiptService struct {
	// DB is the GORM handle used for persistence.
	DB    *gorm.DB
	TTL   time.Duration
	Clock func() time.Time
}

// NewReceiptService returns a ReceiptService with ttl, or DefaultReceiptTTL
// when ttl is not positive.
func NewReceiptService(db *gorm.DB, ttl time.Duration) *ReceiptService {
	if ttl <= 0 {
		ttl = DefaultReceiptTTL
	}
	return &ReceiptService{DB: db, TTL: ttl, Clock: time.Now}
}

// Lookup returns the live receipt for (userID, key), or ErrReceiptNotFound.
func (s *ReceiptService) Lookup(ctx context.Context, userID, key string) (*domain.EventReceipt, error) {
	r, err := repo.FindReceipt(ctx, s.DB, userID, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	if !r.Live(s.now()) {
		return nil, ErrReceiptNotFound
	}
	return r, nil
}

// Save stores the reply for (userID, key). A concurrent save of the same key
// returns ErrDuplicateReceipt.
func (s *ReceiptService) Save(ctx context.Context, userID, key, kind, reply, payload string, status int) error {
	rec := domain.NewEventReceipt(userID, key, kind, status, reply, payload, s.now(), s.TTL)
	err := repo.CreateReceipt(ctx, s.DB, rec)
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicateReceipt
	}
	return err
}

// Purge removes expired receipts and returns how many were deleted.
func (s *ReceiptService) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredReceipts(ctx, s.DB, s.now())
}

func (s *ReceiptService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
