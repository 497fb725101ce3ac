package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is a Kafka message with metadata headers.
type Message struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

// NewMessage builds a message with the payload JSON-encoded and the standard
// headers filled in. The key routes all events for one auction to the same
// partition so consumers observe them in commit order.
func NewMessage(key, eventType, source string, payload any) (Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	now := time.Now()
	return Message{
		Key:       key,
		Value:     value,
		Timestamp: now,
		Headers: map[string]string{
			HeaderEventID:   uuid.New().String(),
			HeaderEventType: eventType,
			HeaderSource:    source,
			HeaderTimestamp: now.Format(time.RFC3339),
		},
	}, nil
}

// DecodeValue decodes the message value into the provided struct.
func (m *Message) DecodeValue(v any) error {
	return json.Unmarshal(m.Value, v)
}
