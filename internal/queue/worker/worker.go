package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/attendance/internal/events"
)

// ConsumeFunc runs one broker session. It calls ready once deliveries flow
// and returns nil only when ctx is cancelled.
type ConsumeFunc func(ctx context.Context, ready func(), handle func(context.Context, events.Delivery) error) error

type Handler interface {
	HandleDelivery(ctx context.Context, d events.Delivery) error
}

type Worker struct {
	consume ConsumeFunc
	handler Handler
	backoff Backoff
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration)

	readyMu sync.RWMutex
	ready   bool
}

func New(consume ConsumeFunc, handler Handler, backoff Backoff, log *slog.Logger) *Worker {
	return &Worker{
		consume: consume,
		handler: handler,
		backoff: backoff,
		log:     log,
		sleep:   sleepCtx,
	}
}

// Run keeps a consumer session alive until ctx is cancelled, reconnecting
// with exponential backoff whenever the session ends.
func (w *Worker) Run(ctx context.Context) error {
	attempt := 0

	for {
		connected := false
		err := w.consume(ctx, func() {
			connected = true
			w.setReady(true)
			w.log.Info("worker consuming", "queue", events.NotificationsQueue)
		}, w.handler.HandleDelivery)

		w.setReady(false)

		if ctx.Err() != nil {
			w.log.Info("worker received shutdown signal")
			return nil
		}

		if connected {
			attempt = 0
		}

		delay := w.backoff.Delay(attempt)
		attempt++

		w.log.Warn("consumer session ended, reconnecting",
			"error", err,
			"attempt", attempt,
			"retry_in", delay.String(),
		)

		w.sleep(ctx, delay)
	}
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
