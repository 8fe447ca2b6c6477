package employee

import (
	"time"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// Session is created on first contact and lives until cleared.
type Session struct {
	UserID          string            `json:"user_id"`
	DisplayID       string            `json:"display_id,omitempty"`
	FirstContactAt  time.Time         `json:"first_contact_at"`
	LastActivityAt  time.Time         `json:"last_activity_at"`
	MessageCount    int               `json:"message_count"`
	PendingAction   domain.ActionType `json:"pending_action,omitempty"`
	PendingActionAt time.Time         `json:"pending_action_at,omitempty"`
}

// HasPending reports whether a pending action is set, regardless of age.
func (s Session) HasPending() bool { return s.PendingAction != "" }

func (s Session) pendingExpired(now time.Time, ttl time.Duration) bool {
	return s.HasPending() && now.Sub(s.PendingActionAt) > ttl
}

func (s Session) withoutPending() Session {
	s.PendingAction = ""
	s.PendingActionAt = time.Time{}
	return s
}

// Pending describes a live pending action.
type Pending struct {
	Action domain.ActionType `json:"action"`
	At     time.Time         `json:"at"`
	// ExpiresAt is when the action lapses if no reading arrives.
	ExpiresAt time.Time `json:"expires_at"`
}
