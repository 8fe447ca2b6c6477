package employee

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/kv"
	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// CachedState holds the record-derived part of a user's State together with
// the instant it stops being usable. Clock-dependent fields are evaluated on
// every read.
type CachedState struct {
	facts     facts
	ExpiresAt time.Time
	gen       uint64
}

// Tracker owns sessions, pending markers, and the state cache.
//
// Session writes go through a mutex so the background sweep never overwrites
// a concurrent update. Cached states carry the invalidation generation they
// were computed under; a computation that raced an invalidation is returned
// but not stored.
type Tracker struct {
	Policy  Policy
	Records RecordSource
	Log     zerolog.Logger
	Clock   func() time.Time
	// OnExpire, when set, is called for every pending action that lapsed.
	OnExpire func(userID string, action domain.ActionType)

	mu       sync.Mutex
	sessions kv.Store[Session]
	cache    kv.Store[CachedState]
	gens     map[string]uint64
}

// NewTracker wires a Tracker. Zero-valued policy durations and limits are
// replaced by the defaults.
func NewTracker(records RecordSource, sessions kv.Store[Session], cache kv.Store[CachedState], p Policy) *Tracker {
	d := DefaultPolicy()
	if p.WorkdayEndHour == 0 {
		p.WorkdayStartHour, p.WorkdayEndHour = d.WorkdayStartHour, d.WorkdayEndHour
	}
	if p.MaxDailyEntries <= 0 {
		p.MaxDailyEntries = d.MaxDailyEntries
	}
	if p.MinActionGap <= 0 {
		p.MinActionGap = d.MinActionGap
	}
	if p.MaxWorkingHours <= 0 {
		p.MaxWorkingHours = d.MaxWorkingHours
	}
	if p.MissingExitGrace <= 0 {
		p.MissingExitGrace = d.MissingExitGrace
	}
	if p.PendingTTL <= 0 {
		p.PendingTTL = d.PendingTTL
	}
	if p.StateCacheTTL <= 0 {
		p.StateCacheTTL = d.StateCacheTTL
	}
	if p.Location == nil {
		p.Location = d.Location
	}
	return &Tracker{
		Policy:   p,
		Records:  records,
		Log:      zerolog.Nop(),
		Clock:    time.Now,
		sessions: sessions,
		cache:    cache,
		gens:     make(map[string]uint64),
	}
}

func (t *Tracker) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

// Touch records activity for the user, creating the session on first contact.
func (t *Tracker) Touch(userID, displayID string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s, ok := t.sessions.Get(userID)
	if !ok {
		s = Session{UserID: userID, FirstContactAt: now}
	}
	if displayID != "" {
		s.DisplayID = displayID
	}
	s.LastActivityAt = now
	s.MessageCount++
	t.sessions.Set(userID, s)
	return s
}

// Session returns the user's session, if any.
func (t *Tracker) Session(userID string) (Session, bool) {
	return t.sessions.Get(userID)
}

// Pending returns the user's live pending action. An expired one is cleared
// silently and reported as absent.
func (t *Tracker) Pending(userID string) (Pending, bool) {
	t.mu.Lock()
	s, ok := t.sessions.Get(userID)
	if !ok || !s.HasPending() {
		t.mu.Unlock()
		return Pending{}, false
	}
	if s.pendingExpired(t.now(), t.Policy.PendingTTL) {
		action := s.PendingAction
		t.sessions.Set(userID, s.withoutPending())
		t.invalidateLocked(userID)
		t.mu.Unlock()
		t.expired(userID, action)
		return Pending{}, false
	}
	t.mu.Unlock()
	return Pending{Action: s.PendingAction, At: s.PendingActionAt, ExpiresAt: s.PendingActionAt.Add(t.Policy.PendingTTL)}, true
}

// MarkPending sets action as the user's single pending action, replacing any
// previous one, and drops the cached state.
func (t *Tracker) MarkPending(userID string, action domain.ActionType) error {
	if !action.Valid() {
		return fmt.Errorf("mark pending %q: unknown action", action)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s, ok := t.sessions.Get(userID)
	if !ok {
		s = Session{UserID: userID, FirstContactAt: now, LastActivityAt: now}
	}
	s.PendingAction = action
	s.PendingActionAt = now
	t.sessions.Set(userID, s)
	t.invalidateLocked(userID)
	return nil
}

// ClearPending removes the pending action and returns what was pending.
func (t *Tracker) ClearPending(userID string) (domain.ActionType, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions.Get(userID)
	if !ok || !s.HasPending() {
		return "", false
	}
	action := s.PendingAction
	t.sessions.Set(userID, s.withoutPending())
	t.invalidateLocked(userID)
	return action, true
}

// Invalidate drops the user's cached state.
func (t *Tracker) Invalidate(userID string) {
	t.mu.Lock()
	t.invalidateLocked(userID)
	t.mu.Unlock()
}

func (t *Tracker) invalidateLocked(userID string) {
	t.gens[userID]++
	t.cache.Delete(userID)
}

// State returns the user's state. Record-derived facts are served from the
// cache while fresh and recomputed otherwise; the work-hour window, elapsed
// hours and warnings are always evaluated at the current time. Facts built
// from partial data (a failed record query) are not cached.
func (t *Tracker) State(ctx context.Context, userID string) State {
	_, hasPending := t.Pending(userID)

	t.mu.Lock()
	now := t.now()
	gen := t.gens[userID]
	if e, ok := t.cache.Get(userID); ok && e.gen == gen && now.Before(e.ExpiresAt) {
		t.mu.Unlock()
		return e.facts.state(t.Policy, hasPending, now)
	}
	t.mu.Unlock()

	f, complete, errs := loadFacts(ctx, t.Records, t.Policy, userID, now)
	st := f.state(t.Policy, hasPending, now)
	if !complete {
		t.Log.Warn().Str("user", sysutil.UserFingerprint(userID)).Errs("errors", errs).Msg("employee state computed from partial data")
		return st
	}

	// Today's counts reset at midnight.
	expires := now.Add(t.Policy.StateCacheTTL)
	if f.dayEnd.Before(expires) {
		expires = f.dayEnd
	}
	t.mu.Lock()
	if t.gens[userID] == gen {
		t.cache.Set(userID, CachedState{facts: f, ExpiresAt: expires, gen: gen})
	}
	t.mu.Unlock()
	return st
}

// ComputeState derives the state without touching the cache.
func (t *Tracker) ComputeState(ctx context.Context, userID string) (State, error) {
	_, hasPending := t.Pending(userID)
	now := t.now()
	f, complete, errs := loadFacts(ctx, t.Records, t.Policy, userID, now)
	st := f.state(t.Policy, hasPending, now)
	if !complete {
		return st, fmt.Errorf("compute state for %s: %w", userID, errors.Join(errs...))
	}
	return st, nil
}

// SweepExpired clears every pending action past its TTL and returns how many
// were cleared.
func (t *Tracker) SweepExpired() int {
	type lapsed struct {
		userID string
		action domain.ActionType
	}
	var cleared []lapsed

	t.mu.Lock()
	now := t.now()
	t.sessions.Range(func(userID string, s Session) bool {
		if s.pendingExpired(now, t.Policy.PendingTTL) {
			cleared = append(cleared, lapsed{userID, s.PendingAction})
			t.sessions.Set(userID, s.withoutPending())
			t.invalidateLocked(userID)
		}
		return true
	})
	t.mu.Unlock()

	for _, c := range cleared {
		t.expired(c.userID, c.action)
	}
	return len(cleared)
}

// Clear forgets the user's session and cached state.
func (t *Tracker) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions.Delete(userID)
	t.invalidateLocked(userID)
}

func (t *Tracker) expired(userID string, action domain.ActionType) {
	t.Log.Debug().Str("user", sysutil.UserFingerprint(userID)).Str("action", string(action)).Msg("pending action expired")
	if t.OnExpire != nil {
		t.OnExpire(userID, action)
	}
}
