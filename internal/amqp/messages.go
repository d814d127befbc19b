package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ledger event kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// LedgerEvent announces a committed write. It carries only the identity of
// the entity; consumers load the current state from the database.
type LedgerEvent struct {
	Kind      string    `json:"kind"`
	Entity    string    `json:"entity"`
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind, entity string, id uuid.UUID) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		Entity:    entity,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage asks a notification gateway to show the daily reminder.
type ReminderMessage struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FireAt    time.Time `json:"fire_at"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReminderMessage(title, body string, fireAt time.Time) *ReminderMessage {
	return &ReminderMessage{
		Title:     title,
		Body:      body,
		FireAt:    fireAt,
		Timestamp: time.Now(),
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
