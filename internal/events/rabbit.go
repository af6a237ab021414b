package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrClosed       = errors.New("publisher closed")
	ErrNotConnected = errors.New("broker not connected")
)

const DefaultDialTimeout = 3 * time.Second

// dial bounds both the TCP connect and the AMQP handshake by timeout.
func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	return conn, nil
}

// RabbitPublisher keeps one connection and channel. Publish never dials:
// while the broker is away it fails fast with ErrNotConnected and a single
// background redial is started.
type RabbitPublisher struct {
	url         string
	dialTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	closed    bool
	redialing bool
	redialed  chan struct{}
}

// NewRabbitPublisher connects once, bounded by dialTimeout.
func NewRabbitPublisher(url string, dialTimeout time.Duration) (*RabbitPublisher, error) {
	p := newRabbitPublisher(url, dialTimeout)

	conn, ch, err := p.connect()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

func newRabbitPublisher(url string, dialTimeout time.Duration) *RabbitPublisher {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &RabbitPublisher{url: url, dialTimeout: dialTimeout, now: time.Now}
}

func (p *RabbitPublisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := dial(p.url, p.dialTimeout)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, t Type, payload any) error {
	env, err := New(t, payload, p.now())
	if err != nil {
		return err
	}

	body, err := Encode(env)
	if err != nil {
		return err
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		Exchange,
		string(env.Type), // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID,
			Type:         string(env.Type),
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	return nil
}

// channel returns the live channel, or starts a redial and reports
// ErrNotConnected.
func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	p.closeLocked()
	if !p.redialing {
		p.redialing = true
		p.redialed = make(chan struct{})
		go p.redial(p.redialed)
	}
	return nil, ErrNotConnected
}

func (p *RabbitPublisher) redial(done chan struct{}) {
	defer close(done)

	conn, ch, err := p.connect()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.redialing = false
	if err != nil {
		return
	}
	if p.closed {
		_ = ch.Close()
		_ = conn.Close()
		return
	}
	p.conn, p.ch = conn, ch
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.closeLocked()
	return nil
}

func (p *RabbitPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// DeclareExchange makes sure the durable topic exchange exists.
func DeclareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
