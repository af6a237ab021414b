package events

import (
	"encoding/json"
	"time"
)

type Type string

const (
	TypeCheckedIn       Type = "attendance.checked_in"
	TypeCheckedOut      Type = "attendance.checked_out"
	TypeEmployeeCreated Type = "employee.created"
	TypeEmployeeDeleted Type = "employee.deleted"
)

// Exchange is the topic exchange every event is published to. The routing
// key is the event type.
const Exchange = "attendance.events"

func (t Type) IsValid() bool {
	switch t {
	case TypeCheckedIn, TypeCheckedOut, TypeEmployeeCreated, TypeEmployeeDeleted:
		return true
	default:
		return false
	}
}

// Envelope is the message body on the wire.
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}
