// Package risk aggregates fraud flags into a per-user risk level and owns the
// temporary block policy.
//
// A Manager keeps one Record per user. Only HIGH flags count as warnings;
// reaching the warning limit blocks the user for a fixed duration. A block
// lapses lazily: the next Status or Evaluate after BlockedUntil unblocks the
// user and resets the warning counter.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/tbourn/go-attendance-bot/internal/fraud"
	"github.com/tbourn/go-attendance-bot/internal/kv"
)

// Level is the aggregated classification of one evaluation.
type Level int

const (
	LevelLow Level = iota + 1
	LevelMedium
	LevelHigh
	LevelBlocked
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelBlocked:
		return "BLOCKED"
	}
	return "UNKNOWN"
}

// MarshalText renders the level by name in JSON.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText parses a level name. "UNKNOWN" decodes to the zero Level.
func (l *Level) UnmarshalText(b []byte) error {
	for _, v := range []Level{0, LevelLow, LevelMedium, LevelHigh, LevelBlocked} {
		if v.String() == string(b) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", b)
}

// Rejects reports whether a reading at this level must be rejected.
func (l Level) Rejects() bool { return l == LevelHigh || l == LevelBlocked }

const (
	DefaultWarningLimit  = 5
	DefaultBlockDuration = 30 * time.Minute
	DefaultIncidentCap   = 20
)

// Policy configures the block manager.
type Policy struct {
	WarningLimit  int
	BlockDuration time.Duration
	IncidentCap   int
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		WarningLimit:  DefaultWarningLimit,
		BlockDuration: DefaultBlockDuration,
		IncidentCap:   DefaultIncidentCap,
	}
}

// Incident is a HIGH flag kept for audit.
type Incident struct {
	At      time.Time  `json:"at"`
	Kind    fraud.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Record is the per-user fraud state.
type Record struct {
	WarningCount  int        `json:"warning_count"`
	LastWarningAt time.Time  `json:"last_warning_at,omitempty"`
	Blocked       bool       `json:"blocked"`
	BlockedUntil  time.Time  `json:"blocked_until,omitempty"`
	Incidents     []Incident `json:"incidents,omitempty"`
}

// Assessment is the outcome of Status or Evaluate.
type Assessment struct {
	Level        Level
	WarningCount int
	BlockedUntil time.Time
	// Remaining is the time left on an active block.
	Remaining time.Duration
	// NewlyBlocked is set when this call triggered the block.
	NewlyBlocked bool
}

// Blocked reports whether the user is under an active block.
func (a Assessment) Blocked() bool { return a.Level == LevelBlocked }

// Manager owns the per-user records. Read-modify-write cycles are guarded by
// a mutex so read-side callers (snapshots) never race an evaluation.
type Manager struct {
	Policy Policy
	Clock  func() time.Time

	mu      sync.Mutex
	records kv.Store[Record]
}

// NewManager returns a Manager over store using policy p. Zero policy
// fields fall back to the defaults.
func NewManager(store kv.Store[Record], p Policy) *Manager {
	d := DefaultPolicy()
	if p.WarningLimit <= 0 {
		p.WarningLimit = d.WarningLimit
	}
	if p.BlockDuration <= 0 {
		p.BlockDuration = d.BlockDuration
	}
	if p.IncidentCap <= 0 {
		p.IncidentCap = d.IncidentCap
	}
	return &Manager{Policy: p, Clock: time.Now, records: store}
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// Classify maps the flags of one evaluation to a level. It never returns
// LevelBlocked.
func Classify(flags []fraud.Flag) Level {
	high := fraud.CountBySeverity(flags, fraud.SeverityHigh)
	medium := fraud.CountBySeverity(flags, fraud.SeverityMedium)
	switch {
	case high >= 2:
		return LevelHigh
	case high >= 1 || medium >= 2:
		return LevelMedium
	}
	return LevelLow
}

// Status reports whether the user is blocked, lifting an expired block.
func (m *Manager) Status(userID string) Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, _ := m.records.Get(userID)
	now := m.now()
	if rec.Blocked {
		if now.Before(rec.BlockedUntil) {
			return blockedAssessment(rec, now, false)
		}
		rec = lift(rec)
		m.records.Set(userID, rec)
	}
	return Assessment{Level: LevelLow, WarningCount: rec.WarningCount}
}

// Evaluate folds the flags of one reading into the user's record and returns
// the resulting level. An active block short-circuits evaluation.
func (m *Manager) Evaluate(userID string, flags []fraud.Flag) Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, _ := m.records.Get(userID)
	now := m.now()
	if rec.Blocked {
		if now.Before(rec.BlockedUntil) {
			return blockedAssessment(rec, now, false)
		}
		rec = lift(rec)
	}

	level := Classify(flags)
	for _, f := range flags {
		if f.Severity != fraud.SeverityHigh {
			continue
		}
		rec.WarningCount++
		rec.LastWarningAt = now
		rec.Incidents = appendIncident(rec.Incidents, Incident{At: now, Kind: f.Kind, Message: f.Message}, m.Policy.IncidentCap)
	}

	if rec.WarningCount >= m.Policy.WarningLimit {
		rec.Blocked = true
		rec.BlockedUntil = now.Add(m.Policy.BlockDuration)
		m.records.Set(userID, rec)
		return blockedAssessment(rec, now, true)
	}

	m.records.Set(userID, rec)
	return Assessment{Level: level, WarningCount: rec.WarningCount}
}

// Snapshot returns a copy of the user's record as of now. An expired block
// is reported as lifted without mutating the stored record.
func (m *Manager) Snapshot(userID string) Record {
	m.mu.Lock()
	rec, _ := m.records.Get(userID)
	m.mu.Unlock()

	if rec.Blocked && !m.now().Before(rec.BlockedUntil) {
		rec = lift(rec)
	}
	out := rec
	out.Incidents = append([]Incident(nil), rec.Incidents...)
	return out
}

// Reset forgets everything about the user.
func (m *Manager) Reset(userID string) {
	m.mu.Lock()
	m.records.Delete(userID)
	m.mu.Unlock()
}

// lift clears an expired block. The warning counter restarts at zero.
func lift(rec Record) Record {
	rec.Blocked = false
	rec.BlockedUntil = time.Time{}
	rec.WarningCount = 0
	return rec
}

func blockedAssessment(rec Record, now time.Time, newly bool) Assessment {
	return Assessment{
		Level:        LevelBlocked,
		WarningCount: rec.WarningCount,
		BlockedUntil: rec.BlockedUntil,
		Remaining:    rec.BlockedUntil.Sub(now),
		NewlyBlocked: newly,
	}
}

// appendIncident returns a new slice holding at most max incidents,
// evicting the oldest.
func appendIncident(list []Incident, inc Incident, max int) []Incident {
	out := make([]Incident, 0, max)
	if over := len(list) + 1 - max; over > 0 {
		list = list[over:]
	}
	out = append(out, list...)
	return append(out, inc)
}
