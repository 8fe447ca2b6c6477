// Package services – Sweeper
//
// Sweeper is the background housekeeping loop. Each tick it clears pending
// actions past their TTL and, when configured, purges expired event
// receipts. Pending expiry does not depend on it: an expired action is also
// cleared on its next read.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-attendance-bot/internal/employee"
)

// Sweeper periodically removes expired per-user state.
type Sweeper struct {
	Tracker  *employee.Tracker
	Receipts *ReceiptService // optional
	Interval time.Duration
	Log      zerolog.Logger
}

// Run blocks until ctx is done. A non-positive Interval disables the loop.
func (w *Sweeper) Run(ctx context.Context) {
	if w.Interval <= 0 {
		w.Log.Info().Msg("sweeper disabled")
		return
	}
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Log.Info().Dur("interval", w.Interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A panic inside the pass is logged and does not stop
// the loop.
func (w *Sweeper) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error().Interface("panic", r).Msg("sweeper pass panicked")
		}
	}()

	if n := w.Tracker.SweepExpired(); n > 0 {
		w.Log.Info().Int("cleared", n).Msg("expired pending actions cleared")
	}
	if w.Receipts == nil {
		return
	}
	n, err := w.Receipts.Purge(ctx)
	if err != nil {
		w.Log.Warn().Err(err).Msg("receipt purge failed")
		return
	}
	if n > 0 {
		w.Log.Debug().Int64("purged", n).Msg("expired receipts purged")
	}
}
