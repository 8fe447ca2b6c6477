package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventReceipt is the reply produced for one messaging-channel event, keyed
// by (user_id, key). A redelivered webhook is answered from the receipt so
// the attendance record is never written twice.
type EventReceipt struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_user_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_user_key,priority:2"`
	Kind      string    `gorm:"type:TEXT NOT NULL"`
	Reply     string    `gorm:"type:TEXT NOT NULL"`
	Payload   string    `gorm:"type:TEXT"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

func (EventReceipt) TableName() string { return "event_receipts" }

// NewEventReceipt stamps a receipt created at now that stays replayable for ttl.
func NewEventReceipt(userID, key, kind string, status int, reply, payload string, now time.Time, ttl time.Duration) *EventReceipt {
	now = now.UTC()
	return &EventReceipt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Key:       key,
		Kind:      kind,
		Reply:     reply,
		Payload:   payload,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Live reports whether the receipt may still be replayed at now.
func (r EventReceipt) Live(now time.Time) bool { return now.Before(r.ExpiresAt) }
