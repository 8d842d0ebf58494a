// Package outbox implements the transactional outbox: events are staged in
// the same local transaction as the domain mutation that produced them, then
// drained asynchronously through a broker publisher. Events are never
// deleted; they are retained for audit.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// maxErrorMessageLen bounds the stored failure reason.
const maxErrorMessageLen = 2000

// Event is one outbox row: an event pending or completed delivery.
//
// Invariants: Processed implies ProcessedAt is set and ErrorMessage is nil.
// RetryCount increments only on publish failure; once it reaches the
// configured maximum the event is excluded from automatic retry and requires
// manual intervention.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	EventType    string     `json:"event_type"`
	Payload      string     `json:"payload"`
	CreatedAt    time.Time  `json:"created_at"`
	Processed    bool       `json:"processed"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// NewEvent creates a pending outbox event. EventType doubles as the routing
// key when the event is published.
func NewEvent(eventType, payload string) *Event {
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkProcessed records a successful publish.
func (e *Event) MarkProcessed(now time.Time) {
	e.Processed = true
	e.ProcessedAt = &now
	e.ErrorMessage = nil
}

// MarkFailed records one failed publish attempt. The stored reason is
// truncated to a bounded length.
func (e *Event) MarkFailed(reason string) {
	e.RetryCount++
	if len(reason) > maxErrorMessageLen {
		reason = reason[:maxErrorMessageLen]
	}
	e.ErrorMessage = &reason
	e.ProcessedAt = nil
}
