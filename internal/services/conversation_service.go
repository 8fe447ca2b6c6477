// Package services – ConversationService
//
// ConversationService maps the messaging channel's events onto the attendance
// flow. Text events are matched against the command vocabulary (entrada,
// salida, estado, ubicaciones, ayuda [tema], cancelar) after case folding and
// accent stripping, so "SALÍDA " and "salida" are the same command. Location
// events go to ValidationService.SubmitReading. Every event touches the
// user's session and produces a reply text.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/help"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// Command names recognized in text events.
const (
	CommandEntrada     = "entrada"
	CommandSalida      = "salida"
	CommandEstado      = "estado"
	CommandUbicaciones = "ubicaciones"
	CommandAyuda       = "ayuda"
	CommandCancelar    = "cancelar"
	CommandUnknown     = "desconocido"
	CommandLocation    = "ubicacion"
)

// Reply is what the channel sends back to the user, plus the structured
// outcome for API callers.
type Reply struct {
	Text    string            `json:"reply"`
	Command string            `json:"command"`
	Action  domain.ActionType `json:"action,omitempty"`
	Allowed *bool             `json:"allowed,omitempty"`
	Verdict *Verdict          `json:"verdict,omitempty"`
}

// ConversationService routes channel events.
type ConversationService struct {
	Validation *ValidationService
	Tracker    *employee.Tracker
	Risk       *risk.Manager
	Fence      *geofence.Fence
	Help       *help.Index
	Log        zerolog.Logger
}

// NewConversationService wires a ConversationService around v, sharing its
// tracker, risk manager and fence.
func NewConversationService(v *ValidationService, h *help.Index) *ConversationService {
	return &ConversationService{
		Validation: v,
		Tracker:    v.Tracker,
		Risk:       v.Risk,
		Fence:      v.Fence,
		Help:       h,
		Log:        zerolog.Nop(),
	}
}

// HandleText answers a text event.
func (s *ConversationService) HandleText(ctx context.Context, userID, displayID, text string) (Reply, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "HandleText",
		trace.WithAttributes(attribute.String("user.fingerprint", sysutil.UserFingerprint(userID))),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return Reply{}, ErrEmptyUserID
	}
	folded := help.Fold(text)
	if folded == "" {
		return Reply{}, ErrEmptyText
	}
	s.Tracker.Touch(userID, displayID)

	cmd, arg, _ := strings.Cut(folded, " ")
	span.SetAttributes(attribute.String("conversation.command", cmd))

	switch {
	case arg == "" && (cmd == CommandEntrada || cmd == CommandSalida):
		action := domain.ActionType(cmd)
		d, err := s.Validation.RequestAction(ctx, userID, action)
		if err != nil {
			return Reply{}, err
		}
		allowed := d.Allowed
		return Reply{Text: renderDecision(action, d, s.Tracker.Policy.PendingTTL), Command: cmd, Action: action, Allowed: &allowed}, nil

	case arg == "" && cmd == CommandEstado:
		st := s.Tracker.State(ctx, userID)
		p, pending := s.Tracker.Pending(userID)
		return Reply{Text: renderState(st, p, pending, s.Risk.Snapshot(userID)), Command: cmd}, nil

	case arg == "" && cmd == CommandUbicaciones:
		return Reply{Text: renderZones(s.Fence.Zones()), Command: cmd}, nil

	case cmd == CommandAyuda:
		return Reply{Text: s.renderHelp(arg), Command: cmd}, nil

	case arg == "" && cmd == CommandCancelar:
		action, ok, err := s.Validation.Cancel(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: renderCancel(action, ok), Command: cmd, Action: action}, nil
	}

	if p, ok := s.Tracker.Pending(userID); ok {
		return Reply{Text: renderPendingReminder(p), Command: CommandUnknown, Action: p.Action}, nil
	}
	return Reply{Text: replyUnknown, Command: CommandUnknown}, nil
}

// HandleLocation answers a location event.
func (s *ConversationService) HandleLocation(ctx context.Context, userID, displayID string, r domain.LocationReading) (Reply, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "HandleLocation",
		trace.WithAttributes(attribute.String("user.fingerprint", sysutil.UserFingerprint(userID))),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return Reply{}, ErrEmptyUserID
	}
	s.Tracker.Touch(userID, displayID)

	v, err := s.Validation.SubmitReading(ctx, userID, r)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: renderVerdict(v), Command: CommandLocation, Action: v.Action, Verdict: &v}, nil
}

func (s *ConversationService) renderHelp(topic string) string {
	if s.Help == nil {
		return replyHelp
	}
	if topic == "" {
		return replyHelp + "\n\n" + renderTopicList(s.Help.Topics())
	}
	if t, ok := s.Help.Lookup(topic); ok {
		return t.Body
	}
	return "No encontré ayuda sobre \"" + topic + "\".\n\n" + renderTopicList(s.Help.Topics())
}
