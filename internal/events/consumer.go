package events

import (
	"context"
	"errors"
	"fmt"
)

// NotificationsQueue collects every event for the notification worker.
const NotificationsQueue = "attendance.notifications"

var bindingKeys = []string{"attendance.#", "employee.#"}

// Delivery is one message handed to a consumer callback. Returning nil acks
// it; an error rejects it without requeue.
type Delivery struct {
	Body []byte
}

// Consume dials the broker, binds the notifications queue and feeds every
// delivery to handle until ctx is done or the connection drops. It returns
// nil only when ctx is cancelled.
func Consume(ctx context.Context, url string, ready func(), handle func(context.Context, Delivery) error) error {
	conn, err := dial(url, DefaultDialTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		return err
	}

	_, err = ch.QueueDeclare(NotificationsQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	for _, key := range bindingKeys {
		if err := ch.QueueBind(NotificationsQueue, key, Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", key, err)
		}
	}

	msgs, err := ch.Consume(NotificationsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	if ready != nil {
		ready()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}

			if err := handle(ctx, Delivery{Body: d.Body}); err != nil {
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}
