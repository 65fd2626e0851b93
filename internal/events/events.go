// Package events defines the payloads the gym service publishes through the outbox.
package events

import "time"

// Event type names carried in the outbox and the event_type Kafka header.
const (
	TypeEntryRecorded         = "entry.recorded"
	TypeEntryClosed           = "entry.closed"
	TypeIdentityStatusChanged = "identity.status_changed"
)

// Topics.
const (
	TopicEntryEvents    = "gym_entry_events"
	TopicIdentityEvents = "gym_identity_events"
)

// EntryRecorded is emitted when a check-in is appended to the ledger.
type EntryRecorded struct {
	EntryID    string    `json:"entry_id"`
	TenantID   string    `json:"tenant_id"`
	IdentityID string    `json:"identity_id"`
	EntryTime  time.Time `json:"entry_time"`
}

// EntryClosed is emitted when a check-out closes an open record.
type EntryClosed struct {
	EntryID     string    `json:"entry_id"`
	TenantID    string    `json:"tenant_id"`
	IdentityID  string    `json:"identity_id"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	DurationMin int       `json:"duration_min"`
}

// IdentityStatusChanged tracks approval decisions made by gym admins.
type IdentityStatusChanged struct {
	IdentityID string    `json:"identity_id"`
	TenantID   string    `json:"tenant_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
