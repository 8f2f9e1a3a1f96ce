package events

import (
	"time"

	"github.com/telecomx/user-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCustomerCreated     EventType = "Customer.Created"
	EventCustomerUpdated     EventType = "Customer.Updated"
	EventCustomerSuspended   EventType = "Customer.Suspended"
	EventCustomerReactivated EventType = "Customer.Reactivated"
	EventCustomerDeleted     EventType = "Customer.Deleted"
)

// Header names attached to every broker message.
const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
)

// timestampLayout matches ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the canonical message body published to the broker.
type Envelope struct {
	Event     EventType `json:"event"`
	Data      any       `json:"data"`
	Timestamp string    `json:"timestamp"`
}

// NewEnvelope stamps payload with the event type and the send time.
func NewEnvelope(eventType EventType, payload any, now time.Time) Envelope {
	return Envelope{
		Event:     eventType,
		Data:      payload,
		Timestamp: now.UTC().Format(timestampLayout),
	}
}

// UserRefPayload identifies the user a state transition applied to.
type UserRefPayload struct {
	UserID string `json:"userId"`
}

// UserUpdatedPayload is the update request body plus the target user id.
type UserUpdatedPayload struct {
	UserID string `json:"userId"`
	domain.UserPatch
}
