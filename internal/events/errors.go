package events

import "errors"

var (
	ErrInvalidType         = errors.New("invalid event type")
	ErrInvalidPayload      = errors.New("invalid event payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for event type")
)
