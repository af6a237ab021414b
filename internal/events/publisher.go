package events

import (
	"context"
	"log/slog"
	"time"
)

// Publisher hands domain events to the broker.
type Publisher interface {
	Publish(ctx context.Context, t Type, payload any) error
}

// LogPublisher only logs. It stands in when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
	now func() time.Time
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log, now: time.Now}
}

func (p *LogPublisher) Publish(ctx context.Context, t Type, payload any) error {
	env, err := New(t, payload, p.now())
	if err != nil {
		return err
	}

	p.log.DebugContext(ctx, "event not sent, no broker configured",
		"event_id", env.ID,
		"event_type", string(env.Type),
	)
	return nil
}
