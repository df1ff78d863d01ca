package amqp

import (
	"encoding/json"
	"time"

	"spendir/internal/core"
)

type Event string

const (
	// EventRecorded covers both inserts and edits; the worker fetches
	// the current row from the database either way.
	EventRecorded Event = "recorded"
	EventDeleted  Event = "deleted"
)

// SpendEventMessage is a lightweight notification about a spend
// lifecycle change. It carries identifiers only, not the row itself.
type SpendEventMessage struct {
	Event     Event     `json:"event"`
	SpendID   int64     `json:"spend_id"`
	Cell      int64     `json:"cell"`
	MessageID int64     `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSpendEventMessage(event Event, s core.Spend) *SpendEventMessage {
	return &SpendEventMessage{
		Event:     event,
		SpendID:   s.ID,
		Cell:      s.Cell,
		MessageID: s.MessageID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SpendEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SpendEventMessageFromJSON creates a message from JSON bytes
func SpendEventMessageFromJSON(data []byte) (*SpendEventMessage, error) {
	var msg SpendEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
