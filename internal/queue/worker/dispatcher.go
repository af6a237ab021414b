package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/attendance/internal/events"
	"github.com/geocoder89/attendance/internal/notifications"
	"github.com/geocoder89/attendance/internal/observability"
)

// Dispatcher turns consumed events into notifications.
type Dispatcher struct {
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger
}

func NewDispatcher(notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, prom: prom, log: log}
}

func (d *Dispatcher) HandleDelivery(ctx context.Context, del events.Delivery) error {
	start := time.Now()

	env, payload, err := events.Decode(del.Body)
	if err != nil {
		d.prom.ObserveConsumed(string(env.Type), "rejected", time.Since(start))
		d.log.WarnContext(ctx, "rejecting undecodable event", "error", err, "event_id", env.ID)
		return err
	}

	log := d.log.With("event_id", env.ID, "event_type", string(env.Type))

	switch p := payload.(type) {
	case events.EmployeeCreatedPayload:
		err = d.notifier.SendWelcome(ctx, notifications.WelcomeInput{
			UserID:       p.UserID,
			Email:        p.Email,
			Name:         p.Name,
			EmployeeCode: p.EmployeeCode,
		})

	case events.CheckedOutPayload:
		err = d.notifier.SendCheckoutSummary(ctx, notifications.CheckoutSummaryInput{
			UserID:       p.UserID,
			Date:         p.Date,
			CheckInTime:  p.CheckInTime,
			CheckOutTime: p.CheckOutTime,
			TotalHours:   p.TotalHours,
		})

	default:
		// no notification for this type
	}

	if err != nil {
		result := "failed"
		if errors.Is(err, notifications.ErrCircuitOpen) {
			result = "circuit_open"
		}
		d.prom.ObserveConsumed(string(env.Type), result, time.Since(start))
		log.ErrorContext(ctx, "event handling failed", "error", err)
		return err
	}

	d.prom.ObserveConsumed(string(env.Type), "done", time.Since(start))
	log.DebugContext(ctx, "event handled")
	return nil
}
