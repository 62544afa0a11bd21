package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"caja/internal/core"
)

// EventMessage carries one committed ledger event to the journal worker.
// The payload is the entity snapshot taken inside the ledger transaction.
type EventMessage struct {
	ID          string          `json:"id"`
	GroupID     int64           `json:"group_id"`
	Kind        string          `json:"kind"`
	Actor       string          `json:"actor"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
	PublishedAt time.Time       `json:"published_at"`
}

// NewEventMessage wraps an outbox event for publishing.
func NewEventMessage(ev core.Event) *EventMessage {
	return &EventMessage{
		ID:          ev.ID,
		GroupID:     ev.GroupID,
		Kind:        ev.Kind,
		Actor:       ev.Actor,
		Payload:     ev.Payload,
		OccurredAt:  ev.CreatedAt,
		PublishedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a delivery body. Messages without an id or
// kind are rejected.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Kind == "" {
		return nil, fmt.Errorf("event message missing id or kind")
	}
	return &msg, nil
}
