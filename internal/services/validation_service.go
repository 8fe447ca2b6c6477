// Package services – ValidationService
//
// ValidationService is the attendance orchestrator. It accepts action
// requests and location readings for one user at a time, runs the geofence,
// the fraud heuristics and the risk aggregator, persists the attempt, and
// returns a Verdict the conversational layer can render.
//
// Per-user serialization: every public method holds the user's lock from
// serial.KeyedMutex for the whole call, record store I/O included, so at most
// one action is ever pending per user.
//
// Failure policy: rule failures are reported as domain.Reason values inside
// the Verdict. Record store failures are soft: they are logged, counted, and
// surface only as Verdict.Persisted == false.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/events"
	"github.com/tbourn/go-attendance-bot/internal/fraud"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/observability"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/serial"
	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// VerdictPublisher receives every completed validation.
type VerdictPublisher interface {
	Publish(ctx context.Context, v events.Verdict) error
}

// Verdict is the combined outcome of one SubmitReading call.
type Verdict struct {
	Action   domain.ActionType       `json:"action,omitempty"`
	Status   domain.ValidationStatus `json:"status,omitempty"`
	Accepted bool                    `json:"accepted"`
	// NothingPending is set when a reading arrived without a pending action.
	// No other field is meaningful in that case except State.
	NothingPending bool            `json:"nothing_pending,omitempty"`
	Zone           *geofence.Zone  `json:"zone,omitempty"`
	Nearest        *geofence.Zone  `json:"nearest_zone,omitempty"`
	DistanceMeters int             `json:"distance_meters"`
	Risk           risk.Level      `json:"risk_level"`
	WarningCount   int             `json:"warning_count"`
	Flags          []fraud.Flag    `json:"flags,omitempty"`
	Reasons        []domain.Reason `json:"reasons,omitempty"`
	Suggestions    []string        `json:"suggestions,omitempty"`
	// BlockedFor is the time left on an active block.
	BlockedFor time.Duration  `json:"blocked_for,omitempty"`
	RecordID   string         `json:"record_id,omitempty"`
	Persisted  bool           `json:"persisted"`
	State      employee.State `json:"state"`
}

// ValidationService orchestrates attendance validation.
type ValidationService struct {
	Fence    *geofence.Fence
	Detector *fraud.Detector
	Risk     *risk.Manager
	Tracker  *employee.Tracker
	Store    RecordStore
	// Events is optional.
	Events VerdictPublisher
	Log    zerolog.Logger
	Clock  func() time.Time

	MaxReadingAge     time.Duration
	MaxAccuracyMeters float64

	locks serial.KeyedMutex
}

// NewValidationService wires a ValidationService with the default gates.
func NewValidationService(f *geofence.Fence, d *fraud.Detector, r *risk.Manager, t *employee.Tracker, store RecordStore) *ValidationService {
	return &ValidationService{
		Fence:             f,
		Detector:          d,
		Risk:              r,
		Tracker:           t,
		Store:             store,
		Log:               zerolog.Nop(),
		Clock:             time.Now,
		MaxReadingAge:     fraud.DefaultMaxReadingAge,
		MaxAccuracyMeters: fraud.DefaultMaxAccuracyMeters,
	}
}

func (s *ValidationService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// RequestAction checks whether userID may start action now and, when
// allowed, marks it pending. A repeated request for the already pending
// action is allowed again as a retry.
func (s *ValidationService) RequestAction(ctx context.Context, userID string, action domain.ActionType) (employee.Decision, error) {
	tr := otel.Tracer("services/ValidationService")
	ctx, span := tr.Start(ctx, "RequestAction",
		trace.WithAttributes(
			attribute.String("user.fingerprint", sysutil.UserFingerprint(userID)),
			attribute.String("attendance.action", string(action)),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return employee.Decision{}, ErrEmptyUserID
	}
	if !action.Valid() {
		return employee.Decision{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return employee.Decision{}, err
	}
	defer unlock()

	d := s.Tracker.CheckAction(ctx, userID, action)
	span.SetAttributes(attribute.Bool("attendance.allowed", d.Allowed), attribute.Bool("attendance.retry", d.Retry))
	if !d.Allowed || d.Retry {
		return d, nil
	}
	if err := s.Tracker.MarkPending(userID, action); err != nil {
		return employee.Decision{}, err
	}
	s.Log.Debug().Str("user", sysutil.UserFingerprint(userID)).Str("action", string(action)).Msg("action pending")
	return d, nil
}

// Cancel drops the user's pending action without writing a record. It
// reports the action that was pending, if any.
func (s *ValidationService) Cancel(ctx context.Context, userID string) (domain.ActionType, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return "", false, ErrEmptyUserID
	}
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	action, ok := s.Tracker.ClearPending(userID)
	return action, ok, nil
}

// SubmitReading validates a location reading against the user's pending
// action.
//
// Check order: pending action, coordinates, active block, geofence,
// freshness (stale readings skip fraud analysis), accuracy, fraud heuristics
// and risk. Every attempt that gets past the coordinate check is persisted,
// valid or not, and clears the pending action.
func (s *ValidationService) SubmitReading(ctx context.Context, userID string, r domain.LocationReading) (Verdict, error) {
	tr := otel.Tracer("services/ValidationService")
	ctx, span := tr.Start(ctx, "SubmitReading",
		trace.WithAttributes(attribute.String("user.fingerprint", sysutil.UserFingerprint(userID))),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return Verdict{}, ErrEmptyUserID
	}
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return Verdict{}, err
	}
	defer unlock()

	v := s.submit(ctx, userID, r)
	span.SetAttributes(
		attribute.String("attendance.status", string(v.Status)),
		attribute.String("risk.level", v.Risk.String()),
		attribute.Int("fraud.flags", len(v.Flags)),
	)
	if v.Status == domain.StatusInvalid {
		span.SetStatus(codes.Error, "attendance rejected")
	}
	return v, nil
}

func (s *ValidationService) submit(ctx context.Context, userID string, r domain.LocationReading) Verdict {
	pending, ok := s.Tracker.Pending(userID)
	if !ok {
		return Verdict{NothingPending: true, Risk: risk.LevelLow, State: s.Tracker.State(ctx, userID)}
	}

	v := Verdict{Action: pending.Action, Risk: risk.LevelLow}
	lat, lng, ok := r.Coordinates()
	if !ok {
		// The pending action survives so the user can resend the location.
		s.Log.Info().Str("user", sysutil.UserFingerprint(userID)).Err(ErrMissingCoordinates).Msg("reading rejected")
		v.Status = domain.StatusInvalid
		v.Reasons = append(v.Reasons, domain.Reason{
			Code:    domain.ReasonMissingCoordinates,
			Message: "La ubicación no incluye latitud y longitud",
		})
		v.Suggestions = append(v.Suggestions, suggestShareLive)
		v.State = s.Tracker.State(ctx, userID)
		observability.ObserveValidation(string(v.Action), string(v.Status))
		return v
	}

	now := s.now()
	capturedAt := r.CapturedAt()
	rec := domain.AttendanceRecord{
		UserID:         userID,
		ActionType:     pending.Action,
		Latitude:       lat,
		Longitude:      lng,
		AccuracyMeters: r.AccuracyMeters,
		GPSTimestamp:   capturedAt,
		RecordedAt:     now,
	}
	s.Log.Debug().Str("user", sysutil.UserFingerprint(userID)).Float64("lat", lat).Float64("lng", lng).Msg("reading received")

	if a := s.Risk.Status(userID); a.Blocked() {
		v.Risk, v.WarningCount = a.Level, a.WarningCount
		s.blocked(&v, a.Remaining)
		return s.finish(ctx, userID, v, rec)
	}

	geo := s.Fence.Authorize(lat, lng)
	v.Zone, v.Nearest, v.DistanceMeters = geo.Zone, geo.Nearest, geo.DistanceMeters

	if err := fraud.CheckFreshness(capturedAt, now, s.MaxReadingAge); err != nil {
		s.Log.Info().Str("user", sysutil.UserFingerprint(userID)).Err(err).Msg("stale reading")
		v.Reasons = append(v.Reasons, domain.Reason{
			Code:    domain.ReasonStaleReading,
			Message: fmt.Sprintf("La ubicación tiene más de %s de antigüedad", employee.HumanDuration(s.maxAge())),
		})
		v.Suggestions = append(v.Suggestions, suggestShareLive)
		return s.finish(ctx, userID, v, rec)
	}

	if !geo.Authorized {
		v.Reasons = append(v.Reasons, geofenceReason(geo))
		v.Suggestions = append(v.Suggestions, "Acércate a una zona autorizada y vuelve a compartir tu ubicación", suggestNoSearchedPlace)
	}

	if err := fraud.CheckAccuracy(r.AccuracyMeters, s.MaxAccuracyMeters); err != nil {
		v.Reasons = append(v.Reasons, domain.Reason{
			Code:    domain.ReasonInsufficientAccuracy,
			Message: accuracyMessage(r.AccuracyMeters, s.maxAccuracy()),
		})
		v.Suggestions = append(v.Suggestions, "Activa el GPS de alta precisión y espera unos segundos antes de compartir")
	}

	v.Flags = s.Detector.Analyze(userID, fraud.Sample{
		Lat:            lat,
		Lng:            lng,
		AccuracyMeters: r.AccuracyMeters,
		CapturedAt:     capturedAt,
		ReceivedAt:     now,
	})
	a := s.Risk.Evaluate(userID, v.Flags)
	v.Risk, v.WarningCount = a.Level, a.WarningCount
	if a.NewlyBlocked {
		observability.ObserveBlock()
		s.Log.Warn().Str("user", sysutil.UserFingerprint(userID)).Int("warnings", a.WarningCount).Time("blocked_until", a.BlockedUntil).Msg("user blocked")
	}
	switch {
	case a.Blocked():
		s.blocked(&v, a.Remaining)
	case a.Level.Rejects():
		v.Reasons = append(v.Reasons, domain.Reason{
			Code:    domain.ReasonFraudRiskHigh,
			Message: "Se detectaron señales de una ubicación alterada",
		})
		v.Suggestions = append(v.Suggestions, suggestNoSearchedPlace, "Desactiva aplicaciones de ubicación simulada")
	}

	return s.finish(ctx, userID, v, rec)
}

// finish settles the verdict, persists the attempt, clears the pending
// action, and emits metrics and the verdict event.
func (s *ValidationService) finish(ctx context.Context, userID string, v Verdict, rec domain.AttendanceRecord) Verdict {
	v.Accepted = len(v.Reasons) == 0
	v.Status = domain.StatusInvalid
	if v.Accepted {
		v.Status = domain.StatusValid
	}

	rec.ValidationStatus = v.Status
	rec.DistanceMeters = v.DistanceMeters
	rec.RiskLevel = v.Risk.String()
	rec.Flags = joinKinds(v.Flags)
	if v.Zone != nil {
		name := v.Zone.Name
		rec.ZoneName = &name
	}
	if err := s.Store.InsertAttendance(ctx, &rec); err != nil {
		s.Log.Warn().Str("user", sysutil.UserFingerprint(userID)).Err(err).Msg("attendance record not persisted")
	} else {
		v.Persisted = true
		v.RecordID = rec.ID
	}

	s.Tracker.ClearPending(userID)

	observability.ObserveValidation(string(v.Action), string(v.Status))
	for _, f := range v.Flags {
		observability.ObserveFlag(f.Kind.String(), f.Severity.String())
	}
	s.publish(ctx, userID, v, rec.RecordedAt)

	v.State = s.Tracker.State(ctx, userID)
	s.Log.Info().
		Str("user", sysutil.UserFingerprint(userID)).
		Str("action", string(v.Action)).
		Str("status", string(v.Status)).
		Str("risk", v.Risk.String()).
		Int("flags", len(v.Flags)).
		Bool("persisted", v.Persisted).
		Msg("attendance validated")
	return v
}

func (s *ValidationService) blocked(v *Verdict, remaining time.Duration) {
	v.BlockedFor = remaining
	v.Reasons = append(v.Reasons, domain.Reason{
		Code:    domain.ReasonUserBlocked,
		Message: "Tu usuario está bloqueado temporalmente por actividad sospechosa",
	})
	v.Suggestions = append(v.Suggestions,
		fmt.Sprintf("Podrás intentarlo de nuevo en %s", employee.HumanDuration(remaining)),
		"Si crees que es un error, contacta a tu supervisor")
}

func (s *ValidationService) publish(ctx context.Context, userID string, v Verdict, at time.Time) {
	if s.Events == nil {
		return
	}
	ev := events.Verdict{
		RecordID:       v.RecordID,
		UserID:         userID,
		Action:         string(v.Action),
		Status:         string(v.Status),
		DistanceMeters: v.DistanceMeters,
		RiskLevel:      v.Risk.String(),
		OccurredAt:     at,
	}
	if v.Zone != nil {
		ev.Zone = v.Zone.Name
	}
	for _, f := range v.Flags {
		ev.Flags = append(ev.Flags, f.Kind.String())
	}
	for _, r := range v.Reasons {
		ev.Reasons = append(ev.Reasons, string(r.Code))
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Log.Warn().Str("user", sysutil.UserFingerprint(userID)).Err(err).Msg("verdict not published")
	}
}

func (s *ValidationService) maxAge() time.Duration {
	if s.MaxReadingAge > 0 {
		return s.MaxReadingAge
	}
	return fraud.DefaultMaxReadingAge
}

func (s *ValidationService) maxAccuracy() float64 {
	if s.MaxAccuracyMeters > 0 {
		return s.MaxAccuracyMeters
	}
	return fraud.DefaultMaxAccuracyMeters
}

const (
	suggestShareLive       = "Comparte tu ubicación actual desde el clip de adjuntos > Ubicación"
	suggestNoSearchedPlace = "Comparte tu ubicación en tiempo real, no un lugar buscado en el mapa"
)

func geofenceReason(g geofence.Result) domain.Reason {
	msg := "No estás dentro de una zona autorizada"
	if g.Nearest != nil {
		msg = fmt.Sprintf("Estás a %d m de %s (radio permitido %.0f m)", g.DistanceMeters, g.Nearest.Name, g.Nearest.RadiusMeters)
	}
	return domain.Reason{Code: domain.ReasonGeofenceMismatch, Message: msg}
}

func accuracyMessage(acc *float64, max float64) string {
	if acc == nil {
		return "La ubicación no informa su precisión"
	}
	return fmt.Sprintf("Precisión insuficiente: %.0f m (máximo %.0f m)", *acc, max)
}

func joinKinds(flags []fraud.Flag) string {
	if len(flags) == 0 {
		return ""
	}
	kinds := make([]string, len(flags))
	for i, f := range flags {
		kinds[i] = f.Kind.String()
	}
	return strings.Join(kinds, ",")
}
