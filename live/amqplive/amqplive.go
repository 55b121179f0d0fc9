// Package amqplive delivers per-operator live notifications from a RabbitMQ
// topic exchange.
package amqplive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-backoffice-session/live"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	DefaultExchange = "backoffice.notifications"
	BroadcastKey    = "broadcast"

	dialTimeout = 5 * time.Second
)

// Notification is one message delivered to the operator.
type Notification struct {
	RoutingKey  string
	Type        string
	ContentType string
	Body        []byte
	Timestamp   time.Time
}

// Handler receives notifications on the consumer goroutine.
type Handler func(Notification)

var _ live.Notifier = (*Notifier)(nil)

// Notifier binds an exclusive auto-delete queue to the operator's routing key
// for the lifetime of a session.
type Notifier struct {
	url      string
	exchange string
	handler  Handler

	conn *amqp.Connection
	ch   *amqp.Channel
	done chan struct{}
	user string
	lock sync.Mutex
}

type Option func(*Notifier)

func WithExchange(exchange string) Option {
	return func(n *Notifier) {
		n.exchange = exchange
	}
}

// WithHandler sets the function deliveries are passed to. It runs on the
// consumer goroutine, which Disconnect waits for, so it must not call
// Connect or Disconnect itself; start a goroutine for that.
func WithHandler(handler Handler) Option {
	return func(n *Notifier) {
		n.handler = handler
	}
}

func New(url string, options ...Option) *Notifier {
	n := &Notifier{
		url:      url,
		exchange: DefaultExchange,
		handler: func(msg Notification) {
			log.Info().Str("routing_key", msg.RoutingKey).Str("type", msg.Type).Msg("live notification")
		},
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// RoutingKey is the topic an operator's notifications are published under.
func RoutingKey(userID string) string {
	return "user." + userID
}

// Connect subscribes to userID's notifications and broadcasts. An existing
// subscription for another operator is replaced.
func (n *Notifier) Connect(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("amqplive: user id is required")
	}

	n.lock.Lock()
	defer n.lock.Unlock()

	if n.conn != nil {
		if n.user == userID {
			return nil
		}
		n.closeLocked()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := amqp.DialConfig(n.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return fmt.Errorf("amqplive: dial: %w", err)
	}
	deliveries, ch, err := n.subscribe(conn, userID)
	if err != nil {
		_ = conn.Close()
		return err
	}

	n.conn, n.ch, n.user = conn, ch, userID
	n.done = make(chan struct{})
	go n.dispatch(deliveries, n.done)

	log.Debug().Str("user_id", userID).Str("exchange", n.exchange).Msg("live notifications connected")
	return nil
}

func (n *Notifier) subscribe(conn *amqp.Connection, userID string) (<-chan amqp.Delivery, *amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("amqplive: channel open: %w", err)
	}

	if err := ch.ExchangeDeclare(n.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, nil, fmt.Errorf("amqplive: exchange declare: %w", err)
	}

	// name, durable, autoDelete, exclusive, noWait, args
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("amqplive: queue declare: %w", err)
	}
	for _, key := range []string{RoutingKey(userID), BroadcastKey} {
		if err := ch.QueueBind(q.Name, key, n.exchange, false, nil); err != nil {
			return nil, nil, fmt.Errorf("amqplive: queue bind %s: %w", key, err)
		}
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("amqplive: consume: %w", err)
	}
	return deliveries, ch, nil
}

func (n *Notifier) dispatch(deliveries <-chan amqp.Delivery, done chan struct{}) {
	defer close(done)
	for d := range deliveries {
		n.handler(Notification{
			RoutingKey:  d.RoutingKey,
			Type:        d.Type,
			ContentType: d.ContentType,
			Body:        d.Body,
			Timestamp:   d.Timestamp,
		})
	}
}

// Connected reports whether a subscription is open.
func (n *Notifier) Connected() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.conn != nil && !n.conn.IsClosed()
}

// Disconnect closes the channel and connection and waits for the consumer
// goroutine. It is idempotent.
func (n *Notifier) Disconnect() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.closeLocked()
}

// closeLocked must be called with n.lock held.
func (n *Notifier) closeLocked() error {
	if n.conn == nil {
		return nil
	}

	var errs []error
	if err := n.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	if err := n.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	<-n.done

	log.Debug().Str("user_id", n.user).Msg("live notifications disconnected")
	n.conn, n.ch, n.done, n.user = nil, nil, nil, ""
	return errors.Join(errs...)
}
