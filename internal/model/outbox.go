package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
	// OutboxStatusDead marks events that ran out of retries; the relay no longer picks them up.
	OutboxStatusDead OutboxStatus = "dead"
)

// Domain events emitted after a server-confirmed odontogram mutation.
const (
	EventOdontogramInitialized = "odontogram.initialized"
	EventToothStatusChanged    = "odontogram.tooth_status_changed"
	EventFindingRegistered     = "odontogram.finding_registered"
	EventToothReset            = "odontogram.tooth_reset"
	EventTreatmentAssigned     = "odontogram.treatment_assigned"
	EventTreatmentRemoved      = "odontogram.treatment_removed"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}
