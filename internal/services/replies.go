package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/help"
	"github.com/tbourn/go-attendance-bot/internal/risk"
)

const (
	replyHelp = "Comandos disponibles:\n" +
		"• entrada: registra tu llegada\n" +
		"• salida: registra el fin de tu jornada\n" +
		"• estado: muestra tu estado actual\n" +
		"• ubicaciones: lista las zonas autorizadas\n" +
		"• cancelar: descarta el registro pendiente\n" +
		"• ayuda <tema>: explica un tema"
	replyUnknown = "No entendí tu mensaje. Escribe \"ayuda\" para ver los comandos disponibles."
)

func renderDecision(action domain.ActionType, d employee.Decision, ttl time.Duration) string {
	var b strings.Builder
	switch {
	case d.Retry:
		fmt.Fprintf(&b, "Tu %s sigue pendiente.", action)
	case d.Allowed:
		fmt.Fprintf(&b, "Listo para registrar tu %s. Comparte tu ubicación actual en los próximos %s.",
			action, employee.HumanDuration(ttl))
	default:
		fmt.Fprintf(&b, "No puedo registrar tu %s:", action)
	}
	writeReasons(&b, d.Reasons, d.Suggestions)
	return b.String()
}

func renderVerdict(v Verdict) string {
	var b strings.Builder
	switch {
	case v.NothingPending:
		b.WriteString("No tienes un registro pendiente. Escribe \"entrada\" o \"salida\" antes de compartir tu ubicación.")
		return b.String()
	case v.Accepted:
		fmt.Fprintf(&b, "✅ %s registrada", capitalize(string(v.Action)))
		if v.Zone != nil {
			fmt.Fprintf(&b, " en %s (%d m)", v.Zone.Name, v.DistanceMeters)
		}
		b.WriteString(".")
		if !v.Persisted {
			b.WriteString(" El registro se guardará en cuanto el sistema esté disponible.")
		}
		for _, w := range v.State.Warnings {
			b.WriteString("\n⚠️ " + w)
		}
		return b.String()
	case domain.HasReason(v.Reasons, domain.ReasonMissingCoordinates):
		b.WriteString("No recibí coordenadas. Tu registro sigue pendiente:")
	default:
		fmt.Fprintf(&b, "❌ No se pudo validar tu %s:", v.Action)
	}
	writeReasons(&b, v.Reasons, v.Suggestions)
	return b.String()
}

func renderState(st employee.State, p employee.Pending, pending bool, rec risk.Record) string {
	var b strings.Builder
	if st.Status == employee.StatusIn {
		b.WriteString("Estado: dentro")
	} else {
		b.WriteString("Estado: fuera")
	}
	if st.LastActionAt != nil {
		fmt.Fprintf(&b, "\nÚltimo registro: %s a las %s", st.LastAction, st.LastActionAt.Format("15:04"))
	}
	fmt.Fprintf(&b, "\nHoy: %d entradas, %d salidas", st.TodayEntries, st.TodayExits)
	if st.Status == employee.StatusIn {
		fmt.Fprintf(&b, "\nHoras trabajadas: %.1f", st.WorkingHours)
	}
	if pending {
		fmt.Fprintf(&b, "\nPendiente: %s (vence a las %s)", p.Action, p.ExpiresAt.Format("15:04"))
	}
	if rec.Blocked {
		fmt.Fprintf(&b, "\nBloqueado hasta las %s", rec.BlockedUntil.Format("15:04"))
	}
	for _, w := range st.Warnings {
		b.WriteString("\n⚠️ " + w)
	}
	return b.String()
}

func renderZones(zones []geofence.Zone) string {
	var b strings.Builder
	b.WriteString("Zonas autorizadas:")
	for _, z := range zones {
		fmt.Fprintf(&b, "\n• %s (radio %.0f m)", z.Name, z.RadiusMeters)
	}
	return b.String()
}

func renderCancel(action domain.ActionType, ok bool) string {
	if !ok {
		return "No tienes ningún registro pendiente."
	}
	return fmt.Sprintf("Cancelé tu %s pendiente. No se guardó ningún registro.", action)
}

func renderPendingReminder(p employee.Pending) string {
	return fmt.Sprintf("Tienes una %s pendiente hasta las %s. Comparte tu ubicación actual o escribe \"cancelar\".",
		p.Action, p.ExpiresAt.Format("15:04"))
}

func renderTopicList(topics []help.Topic) string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return "Temas de ayuda: " + strings.Join(names, ", ")
}

func writeReasons(b *strings.Builder, reasons []domain.Reason, suggestions []string) {
	for _, r := range reasons {
		b.WriteString("\n• " + r.Message)
	}
	for _, s := range suggestions {
		b.WriteString("\n👉 " + s)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
