package notify

import (
	"encoding/json"
	"time"
)

const (
	TopicEmail = "notify.email"

	EventEmailRequested = "EmailRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually the order id
	Payload       json.RawMessage `json:"payload"`
}

// PartitionKey keeps all notifications for one recipient on one partition.
func PartitionKey(recipient string) []byte { return []byte(recipient) }
