package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type ProtectedNotifierConfig struct {
	Timeout          time.Duration
	FailureThreshold int // consecutive failures before opening
	Cooldown         time.Duration
	HalfOpenMaxCalls int
}

type circuitState string

const (
	circuitClosed   circuitState = "closed"
	circuitOpen     circuitState = "open"
	circuitHalfOpen circuitState = "half_open"
)

// ProtectedNotifier puts a per-call timeout and a circuit breaker in front
// of another Notifier so a slow provider cannot stall the worker.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu       sync.Mutex
	state    circuitState
	failures int
	openedAt time.Time
	trials   int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: circuitClosed,
	}
}

func (n *ProtectedNotifier) SendWelcome(ctx context.Context, in WelcomeInput) error {
	return n.call(ctx, func(ctx context.Context) error {
		return n.inner.SendWelcome(ctx, in)
	})
}

func (n *ProtectedNotifier) SendCheckoutSummary(ctx context.Context, in CheckoutSummaryInput) error {
	return n.call(ctx, func(ctx context.Context) error {
		return n.inner.SendCheckoutSummary(ctx, in)
	})
}

func (n *ProtectedNotifier) call(ctx context.Context, fn func(context.Context) error) error {
	if !n.allow() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := fn(sendCtx)
	n.record(err)
	return err
}

// State reports closed, open or half_open.
func (n *ProtectedNotifier) State() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return string(n.state)
}

func (n *ProtectedNotifier) allow() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == circuitOpen {
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			return false
		}
		n.state = circuitHalfOpen
		n.trials = 0
	}

	if n.state == circuitHalfOpen {
		if n.trials >= n.cfg.HalfOpenMaxCalls {
			return false
		}
		n.trials++
	}
	return true
}

func (n *ProtectedNotifier) record(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == circuitHalfOpen && n.trials > 0 {
		n.trials--
	}

	if err == nil {
		n.failures = 0
		n.state = circuitClosed
		return
	}

	n.failures++

	// a failed trial reopens right away
	if n.state == circuitHalfOpen || n.failures >= n.cfg.FailureThreshold {
		n.state = circuitOpen
		n.openedAt = n.now()
	}
}
