package events

import (
	"encoding/json"
	"time"

	"omomoney/internal/store"
)

// ChangeMessage announces one saved mutation. Consumers reload the record by
// kind and ID; the message carries no entity payload.
type ChangeMessage struct {
	Op        string    `json:"op"`
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage builds the notification for a saved change.
func NewChangeMessage(c store.Change) *ChangeMessage {
	return &ChangeMessage{
		Op:        string(c.Op),
		Kind:      string(c.Kind),
		ID:        c.ID,
		Revision:  c.Revision,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
