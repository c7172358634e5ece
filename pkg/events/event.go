package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageInserted is emitted once per persisted chat message.
const MessageInserted = "message-inserted"

// Event defines the contract for all fan-out events.
type Event interface {
	// EventType returns the kind of the event (e.g. "message-inserted").
	EventType() string

	// Topic returns the routing key subscribers filter on.
	Topic() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Envelope is the wire format shared by every fan-out driver.
type Envelope struct {
	Type       string          `json:"type"`
	TopicKey   string          `json:"topic"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEnvelope(eventType, topic string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		Type:       eventType,
		TopicKey:   topic,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (e Envelope) EventType() string {
	return e.Type
}

func (e Envelope) Topic() string {
	return e.TopicKey
}

func (e Envelope) Timestamp() time.Time {
	return e.OccurredAt
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}
