package employee

import (
	"context"
	"fmt"
	"time"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// Status is the attendance status derived from validated records.
type Status string

const (
	StatusOut Status = "OUT"
	StatusIn  Status = "IN"
)

// State is the derived attendance view of one employee. CachedAt is when
// the underlying records were read.
type State struct {
	Status       Status            `json:"status"`
	LastAction   domain.ActionType `json:"last_action,omitempty"`
	LastActionAt *time.Time        `json:"last_action_at,omitempty"`
	TodayEntries int               `json:"today_entries"`
	TodayExits   int               `json:"today_exits"`
	WorkingHours float64           `json:"working_hours"`
	CanEnter     bool              `json:"can_enter"`
	CanExit      bool              `json:"can_exit"`
	Warnings     []string          `json:"warnings"`
	MissingExit  bool              `json:"missing_exit"`
	CachedAt     time.Time         `json:"cached_at"`
}

// RecordSource answers the two queries state derivation needs. A nil record
// with a nil error means the user has no validated record yet.
type RecordSource interface {
	LastValidated(ctx context.Context, userID string) (*domain.AttendanceRecord, error)
	TodayValidated(ctx context.Context, userID string, from, to time.Time) ([]domain.AttendanceRecord, error)
}

// facts are the record-derived inputs of a State. They change only when a
// record is written or the calendar day rolls over, so they are what the
// Tracker caches.
type facts struct {
	lastAction   domain.ActionType
	lastActionAt *time.Time
	todayEntries int
	todayExits   int
	loadedAt     time.Time
	dayEnd       time.Time
}

// loadFacts queries the record source. complete is false when a query
// failed; the facts then hold whatever was available.
func loadFacts(ctx context.Context, src RecordSource, p Policy, userID string, now time.Time) (f facts, complete bool, errs []error) {
	complete = true
	from, to := p.Day(now)
	f.loadedAt, f.dayEnd = now, to

	last, err := src.LastValidated(ctx, userID)
	if err != nil {
		complete = false
		errs = append(errs, fmt.Errorf("last validated: %w", err))
	} else if last != nil {
		at := last.RecordedAt
		f.lastAction, f.lastActionAt = last.ActionType, &at
	}

	today, err := src.TodayValidated(ctx, userID, from, to)
	if err != nil {
		complete = false
		errs = append(errs, fmt.Errorf("today validated: %w", err))
	}
	for _, r := range today {
		switch r.ActionType {
		case domain.ActionEntrada:
			f.todayEntries++
		case domain.ActionSalida:
			f.todayExits++
		}
	}
	return f, complete, errs
}

// state evaluates the clock-dependent fields (work-hour window, elapsed
// hours, warnings) at now.
func (f facts) state(p Policy, hasPending bool, now time.Time) State {
	st := State{
		Status:       StatusOut,
		LastAction:   f.lastAction,
		LastActionAt: f.lastActionAt,
		TodayEntries: f.todayEntries,
		TodayExits:   f.todayExits,
		Warnings:     []string{},
		CachedAt:     f.loadedAt,
	}
	if f.lastAction == domain.ActionEntrada {
		st.Status = StatusIn
	}

	if f.lastActionAt != nil {
		elapsed := now.Sub(*f.lastActionAt)
		if st.Status == StatusIn {
			st.WorkingHours = elapsed.Hours()
			if elapsed > p.MaxWorkingHours {
				st.Warnings = append(st.Warnings,
					fmt.Sprintf("Llevas %.1f horas trabajando, más del máximo de %.0f", st.WorkingHours, p.MaxWorkingHours.Hours()))
			}
			if now.In(p.loc()).Hour() >= p.WorkdayEndHour && elapsed > p.MissingExitGrace {
				st.MissingExit = true
				st.Warnings = append(st.Warnings, "No registraste tu salida")
			}
		}
		if elapsed >= 0 && elapsed < p.MinActionGap {
			st.Warnings = append(st.Warnings,
				fmt.Sprintf("Tu último registro fue hace menos de %s", HumanDuration(p.MinActionGap)))
		}
	}

	st.CanEnter = st.Status == StatusOut &&
		st.TodayEntries < p.MaxDailyEntries &&
		p.WithinWorkday(now) &&
		!hasPending
	st.CanExit = st.Status == StatusIn && !hasPending
	return st
}

// HumanDuration renders d rounded up to whole minutes, in Spanish.
func HumanDuration(d time.Duration) string {
	if d <= 0 {
		return "0 minutos"
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	switch {
	case mins == 1:
		return "1 minuto"
	case mins < 60:
		return fmt.Sprintf("%d minutos", mins)
	case mins == 60:
		return "1 hora"
	case mins%60 == 0:
		return fmt.Sprintf("%d horas", mins/60)
	}
	return fmt.Sprintf("%dh %02dm", mins/60, mins%60)
}
