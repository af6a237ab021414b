package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New validates payload against t and wraps it in an envelope.
func New(t Type, payload any, now time.Time) (Envelope, error) {
	if err := Validate(t, payload); err != nil {
		return Envelope{}, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return Envelope{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: now.UTC(),
		Payload:    b,
	}, nil
}

func Encode(env Envelope) ([]byte, error) {
	if !env.Type.IsValid() {
		return nil, ErrInvalidType
	}
	return json.Marshal(env)
}

// Decode parses a message body and its payload into the typed struct.
func Decode(body []byte) (Envelope, any, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	p, err := DecodePayload(env)
	if err != nil {
		return env, nil, err
	}
	return env, p, nil
}

func DecodePayload(env Envelope) (any, error) {
	if !env.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if len(env.Payload) == 0 {
		return nil, ErrInvalidPayload
	}

	var p any
	switch env.Type {
	case TypeCheckedIn:
		p = &CheckedInPayload{}
	case TypeCheckedOut:
		p = &CheckedOutPayload{}
	case TypeEmployeeCreated:
		p = &EmployeeCreatedPayload{}
	case TypeEmployeeDeleted:
		p = &EmployeeDeletedPayload{}
	}

	if err := json.Unmarshal(env.Payload, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := Validate(env.Type, p); err != nil {
		return nil, err
	}

	// hand back values, not pointers
	switch v := p.(type) {
	case *CheckedInPayload:
		return *v, nil
	case *CheckedOutPayload:
		return *v, nil
	case *EmployeeCreatedPayload:
		return *v, nil
	case *EmployeeDeletedPayload:
		return *v, nil
	}
	return nil, ErrInvalidType
}

// Validate checks that payload is the struct t expects and carries its ids.
func Validate(t Type, payload any) error {
	if !t.IsValid() {
		return ErrInvalidType
	}

	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch t {
	case TypeCheckedIn:
		p, ok := as[CheckedInPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if blank(p.RecordID) || blank(p.UserID) || blank(p.Date) {
			return ErrInvalidPayload
		}

	case TypeCheckedOut:
		p, ok := as[CheckedOutPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if blank(p.RecordID) || blank(p.UserID) || blank(p.Date) || p.TotalHours < 0 {
			return ErrInvalidPayload
		}

	case TypeEmployeeCreated:
		p, ok := as[EmployeeCreatedPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if blank(p.UserID) || blank(p.Email) {
			return ErrInvalidPayload
		}

	case TypeEmployeeDeleted:
		p, ok := as[EmployeeDeletedPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if blank(p.UserID) {
			return ErrInvalidPayload
		}
	}

	return nil
}

func as[T any](payload any) (T, bool) {
	switch v := payload.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}
