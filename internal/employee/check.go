package employee

import (
	"context"
	"fmt"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// Decision is the answer to "may this user start this action now?".
type Decision struct {
	Allowed bool `json:"allowed"`
	// Retry is set when the same action was already pending.
	Retry       bool            `json:"retry"`
	Reasons     []domain.Reason `json:"reasons,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	State       State           `json:"state"`
}

// CheckAction evaluates the legality of starting action. It never marks the
// action pending; callers do that on an allowed decision.
func (t *Tracker) CheckAction(ctx context.Context, userID string, action domain.ActionType) Decision {
	if p, ok := t.Pending(userID); ok {
		st := t.State(ctx, userID)
		if p.Action == action {
			return Decision{
				Allowed:     true,
				Retry:       true,
				State:       st,
				Suggestions: []string{"Comparte tu ubicación actual para completar el registro"},
			}
		}
		return Decision{
			State: st,
			Reasons: []domain.Reason{{
				Code:    domain.ReasonPendingConflict,
				Message: fmt.Sprintf("Ya tienes una %s pendiente", p.Action),
			}},
			Suggestions: []string{
				fmt.Sprintf("Comparte tu ubicación para completar la %s", p.Action),
				"Escribe \"cancelar\" para descartarla",
			},
		}
	}

	st := t.State(ctx, userID)
	now := t.now()
	p := t.Policy
	var reasons []domain.Reason
	var suggestions []string

	switch action {
	case domain.ActionEntrada:
		if st.Status == StatusIn {
			reasons = append(reasons, domain.Reason{Code: domain.ReasonInvalidState, Message: "Ya tienes una entrada registrada"})
			suggestions = append(suggestions, "Escribe \"salida\" cuando termines tu jornada")
		}
		if !p.WithinWorkday(now) {
			reasons = append(reasons, domain.Reason{
				Code:    domain.ReasonPolicyViolation,
				Message: fmt.Sprintf("Fuera del horario laboral (%02d:00 a %02d:00)", p.WorkdayStartHour, p.WorkdayEndHour),
			})
			suggestions = append(suggestions, fmt.Sprintf("Registra tu entrada a partir de las %02d:00", p.WorkdayStartHour))
		}
		if st.TodayEntries >= p.MaxDailyEntries {
			reasons = append(reasons, domain.Reason{
				Code:    domain.ReasonPolicyViolation,
				Message: fmt.Sprintf("Alcanzaste el máximo de %d entradas por día", p.MaxDailyEntries),
			})
			suggestions = append(suggestions, "Contacta a tu supervisor si necesitas otro registro")
		}
	case domain.ActionSalida:
		if st.Status == StatusOut {
			reasons = append(reasons, domain.Reason{Code: domain.ReasonInvalidState, Message: "No tienes una entrada registrada"})
			suggestions = append(suggestions, "Escribe \"entrada\" para iniciar tu jornada")
		}
	default:
		reasons = append(reasons, domain.Reason{Code: domain.ReasonInvalidState, Message: fmt.Sprintf("Acción desconocida %q", action)})
	}

	if st.LastActionAt != nil {
		if since := now.Sub(*st.LastActionAt); since >= 0 && since < p.MinActionGap {
			reasons = append(reasons, domain.Reason{
				Code:    domain.ReasonPolicyViolation,
				Message: fmt.Sprintf("Debes esperar %s entre registros", HumanDuration(p.MinActionGap)),
			})
			suggestions = append(suggestions, fmt.Sprintf("Intenta de nuevo en %s", HumanDuration(p.MinActionGap-since)))
		}
	}

	return Decision{Allowed: len(reasons) == 0, Reasons: reasons, Suggestions: suggestions, State: st}
}
