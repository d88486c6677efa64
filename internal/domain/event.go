package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusChangedEvent is the envelope published to the notification
// channel whenever an application status changes.
type StatusChangedEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	OldStatus     Status    `json:"old_status"`
	NewStatus     Status    `json:"new_status"`
	Timestamp     time.Time `json:"timestamp"`
}

// PendingReminderEvent is published by the scheduler for applications
// that have sat in pending review for too long.
type PendingReminderEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	BorrowerID    string    `json:"borrower_id"`
	PendingSince  time.Time `json:"pending_since"`
	Timestamp     time.Time `json:"timestamp"`
}
