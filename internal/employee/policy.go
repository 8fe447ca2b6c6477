// Package employee tracks each employee's session, pending action, and
// derived attendance state, and decides which actions are legal right now.
//
// State is a pure function of the persisted records, the session, and the
// current time. The Tracker caches the record-derived part per user with its
// own expiry instant, drops it when records or the pending marker change,
// and evaluates the clock-dependent fields on every read.
package employee

import "time"

// Policy holds the attendance rules. Hours are in the Policy's Location.
type Policy struct {
	WorkdayStartHour int
	WorkdayEndHour   int
	MaxDailyEntries  int
	MinActionGap     time.Duration
	MaxWorkingHours  time.Duration
	MissingExitGrace time.Duration
	PendingTTL       time.Duration
	StateCacheTTL    time.Duration
	Location         *time.Location
}

// DefaultPolicy returns the stock rules in the local time zone.
func DefaultPolicy() Policy {
	return Policy{
		WorkdayStartHour: 6,
		WorkdayEndHour:   22,
		MaxDailyEntries:  3,
		MinActionGap:     5 * time.Minute,
		MaxWorkingHours:  12 * time.Hour,
		MissingExitGrace: 2 * time.Hour,
		PendingTTL:       10 * time.Minute,
		StateCacheTTL:    60 * time.Minute,
		Location:         time.Local,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// WithinWorkday reports whether t falls in [start, end) hours.
func (p Policy) WithinWorkday(t time.Time) bool {
	h := t.In(p.loc()).Hour()
	return h >= p.WorkdayStartHour && h < p.WorkdayEndHour
}

// Day returns the calendar day [start, end) containing t.
func (p Policy) Day(t time.Time) (start, end time.Time) {
	t = t.In(p.loc())
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc())
	return start, start.AddDate(0, 0, 1)
}
