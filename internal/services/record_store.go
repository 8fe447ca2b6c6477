// Package services – GuardedStore
//
// GuardedStore wraps the record store with a per-attempt timeout and at most
// one retry. Exhausted calls are logged at warn, counted, and returned as
// ErrStoreUnavailable so callers can continue without the record.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/observability"
	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// RecordStore is the persistence boundary of the attendance flow.
type RecordStore interface {
	InsertAttendance(ctx context.Context, rec *domain.AttendanceRecord) error
	LastValidated(ctx context.Context, userID string) (*domain.AttendanceRecord, error)
	TodayValidated(ctx context.Context, userID string, from, to time.Time) ([]domain.AttendanceRecord, error)
}

const (
	defaultStoreTimeout = 3 * time.Second
	maxStoreRetries     = 1
)

// GuardedStore adds bounded timeouts and a single retry to a RecordStore.
type GuardedStore struct {
	Store   RecordStore
	Timeout time.Duration
	Retries int
	Log     zerolog.Logger
}

// NewGuardedStore wraps s. Retries is clamped to [0, 1].
func NewGuardedStore(s RecordStore, timeout time.Duration, retries int, log zerolog.Logger) *GuardedStore {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	if retries < 0 {
		retries = 0
	}
	if retries > maxStoreRetries {
		retries = maxStoreRetries
	}
	return &GuardedStore{Store: s, Timeout: timeout, Retries: retries, Log: log}
}

func (g *GuardedStore) InsertAttendance(ctx context.Context, rec *domain.AttendanceRecord) error {
	return g.do(ctx, "insert_attendance", rec.UserID, func(ctx context.Context) error {
		return g.Store.InsertAttendance(ctx, rec)
	})
}

func (g *GuardedStore) LastValidated(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	var out *domain.AttendanceRecord
	err := g.do(ctx, "last_validated", userID, func(ctx context.Context) error {
		r, err := g.Store.LastValidated(ctx, userID)
		out = r
		return err
	})
	return out, err
}

func (g *GuardedStore) TodayValidated(ctx context.Context, userID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	err := g.do(ctx, "today_validated", userID, func(ctx context.Context) error {
		r, err := g.Store.TodayValidated(ctx, userID, from, to)
		out = r
		return err
	})
	return out, err
}

func (g *GuardedStore) do(ctx context.Context, op, userID string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= g.Retries+1; attempt++ {
		actx, cancel := context.WithTimeout(ctx, g.Timeout)
		err = fn(actx)
		cancel()
		if err == nil {
			return nil
		}
		g.Log.Warn().
			Str("op", op).
			Str("user", sysutil.UserFingerprint(userID)).
			Int("attempt", attempt).
			Err(err).
			Msg("record store call failed")
		if ctx.Err() != nil {
			break
		}
	}
	observability.ObserveStoreFailure(op)
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
