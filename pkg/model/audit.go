package model

import (
	"encoding/json"
	"time"
)

// AuditEntry is one consumed domain event, stored once per event id.
type AuditEntry struct {
	EventID       string          `json:"event_id" bson:"_id"`
	EventType     string          `json:"event_type" bson:"event_type"`
	Key           string          `json:"key" bson:"key"`
	ActorID       string          `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Source        string          `json:"source,omitempty" bson:"source,omitempty"`
	Payload       json.RawMessage `json:"payload" bson:"-"`
	PayloadDoc    any             `json:"-" bson:"payload"`
	OccurredAt    time.Time       `json:"occurred_at" bson:"occurred_at"`
	ReceivedAt    time.Time       `json:"received_at" bson:"received_at"`
}
