package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/events"
	"github.com/tbourn/go-attendance-bot/internal/fraud"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/help"
	"github.com/tbourn/go-attendance-bot/internal/kv"
	"github.com/tbourn/go-attendance-bot/internal/risk"
)

// ----- Fake record store -----

type memStore struct {
	mu        sync.Mutex
	records   []domain.AttendanceRecord
	insertErr error
	inserts   int
}

func (m *memStore) InsertAttendance(_ context.Context, rec *domain.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("rec-%d", m.inserts)
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *memStore) LastValidated(_ context.Context, userID string) (*domain.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *domain.AttendanceRecord
	for i := range m.records {
		r := m.records[i]
		if r.UserID != userID || !r.Validated() {
			continue
		}
		if last == nil || !r.RecordedAt.Before(last.RecordedAt) {
			last = &r
		}
	}
	return last, nil
}

func (m *memStore) TodayValidated(_ context.Context, userID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AttendanceRecord
	for _, r := range m.records {
		if r.UserID == userID && r.Validated() && !r.RecordedAt.Before(from) && r.RecordedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) all() []domain.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AttendanceRecord(nil), m.records...)
}

// ----- Fake publisher -----

type recordingPublisher struct {
	mu   sync.Mutex
	got  []string
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, v events.Verdict) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("queue full")
	}
	p.got = append(p.got, v.UserID+":"+v.Status)
	return nil
}

// ----- Harness -----

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	hq      = geofence.Zone{ID: "hq", Name: "Oficina Central", Lat: 19.432608, Lng: -99.133209, RadiusMeters: 150}
	rounded = geofence.Zone{ID: "r", Name: "Campo", Lat: 19, Lng: -99, RadiusMeters: 200}
)

type harness struct {
	svc   *ValidationService
	store *memStore
	pub   *recordingPublisher
	clock *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := &testClock{t: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}

	fence, err := geofence.New([]geofence.Zone{hq, rounded})
	if err != nil {
		t.Fatalf("geofence: %v", err)
	}
	store := &memStore{}

	p := employee.DefaultPolicy()
	p.Location = time.UTC
	tracker := employee.NewTracker(store, kv.NewMemory[employee.Session](), kv.NewMemory[employee.CachedState](), p)
	tracker.Clock = c.Now

	rm := risk.NewManager(kv.NewMemory[risk.Record](), risk.DefaultPolicy())
	rm.Clock = c.Now

	svc := NewValidationService(fence, fraud.NewDetector(kv.NewMemory[[]fraud.HistoryEntry]()), rm, tracker, store)
	svc.Clock = c.Now
	pub := &recordingPublisher{}
	svc.Events = pub
	return &harness{svc: svc, store: store, pub: pub, clock: c}
}

func (h *harness) conversation() *ConversationService {
	return NewConversationService(h.svc, help.New(help.DefaultTopics()))
}

func f64(v float64) *float64 { return &v }

// freshReading is an accurate reading inside hq captured 10 seconds ago.
func (h *harness) freshReading() domain.LocationReading {
	ts := h.clock.Now().Add(-10 * time.Second).Unix()
	return domain.LocationReading{
		Latitude:               f64(19.4327),
		Longitude:              f64(-99.1332),
		AccuracyMeters:         f64(12),
		CapturedAtEpochSeconds: &ts,
	}
}
