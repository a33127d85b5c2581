package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the interface that all published events implement.
type Event interface {
	// EventID returns the unique identifier for this event instance.
	EventID() uuid.UUID

	// EventType returns the type name of the event (e.g., "generation.succeeded").
	EventType() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// SubjectID returns the ID of the entity the event is about.
	SubjectID() uuid.UUID
}

// BaseEvent provides a base implementation of the Event interface.
// Embed it in concrete events.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Subject   uuid.UUID `json:"subject_id"`
}

// EventID returns the unique identifier for this event instance.
func (e BaseEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type name of the event.
func (e BaseEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// SubjectID returns the ID of the entity the event is about.
func (e BaseEvent) SubjectID() uuid.UUID {
	return e.Subject
}

// NewBaseEvent creates a new BaseEvent.
func NewBaseEvent(eventType string, subjectID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Subject:   subjectID,
	}
}
