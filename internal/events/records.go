// Package events defines the record event payloads published through the outbox.
package events

import (
	"encoding/json"
	"time"
)

// Event types written to the outbox.
const (
	TypeRecordUpserted = "record.upserted"
	TypeRecordDeleted  = "record.deleted"
)

// RecordUpserted is emitted when a record is created or replaced.
type RecordUpserted struct {
	Collection string          `json:"collection"`
	OwnerKey   string          `json:"owner_key"`
	RecordID   string          `json:"record_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RecordDeleted is emitted when a record is removed.
type RecordDeleted struct {
	Collection string    `json:"collection"`
	OwnerKey   string    `json:"owner_key"`
	RecordID   string    `json:"record_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}
