package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// attemptsHeader counts failed deliveries of a republished message.
	attemptsHeader = "x-devlife-attempts"

	defaultRetryDelay   = 5 * time.Second
	maxDeliveryAttempts = 5
)

// Message is the queued form of an email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var errMalformedMessage = errors.New("malformed queued email")

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// brokerConn is satisfied by *amqp.Connection.
type brokerConn interface {
	IsClosed() bool
	Close() error
}

type opener func(url, queue string) (brokerConn, publisher, error)

// QueueSender hands emails to a durable AMQP queue drained by cmd/mailer. A dropped
// connection is reopened on the next Send or Ping.
type QueueSender struct {
	url   string
	queue string
	open  opener

	mu   sync.Mutex
	conn brokerConn
	ch   publisher
}

// NewQueueSender connects eagerly so a bad AMQP_URL fails at startup.
func NewQueueSender(url, queue string) (*QueueSender, error) {
	s := &QueueSender{url: url, queue: queue, open: dialPublisher}
	if err := s.connectLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func dialPublisher(url, queue string) (brokerConn, publisher, error) {
	conn, ch, err := openQueue(url, queue)
	if err != nil {
		return nil, nil, err
	}
	return conn, ch, nil
}

func (s *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(); err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg)
	if err != nil {
		// The channel may have died under a still-open connection; start over once.
		s.resetLocked()
		if cerr := s.connectLocked(); cerr != nil {
			return fmt.Errorf("publish email: %w", errors.Join(err, cerr))
		}
		err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}

// Ping reconnects if needed and reports whether the broker is reachable.
func (s *QueueSender) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *QueueSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn, s.ch = nil, nil
	return err
}

func (s *QueueSender) connectLocked() error {
	if s.conn != nil && !s.conn.IsClosed() {
		return nil
	}
	s.resetLocked()

	conn, ch, err := s.open(s.url, s.queue)
	if err != nil {
		return err
	}
	s.conn, s.ch = conn, ch
	return nil
}

func (s *QueueSender) resetLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn, s.ch = nil, nil
}

// Relay drains the queue and delivers each message through a Sender.
type Relay struct {
	url         string
	queue       string
	sender      Sender
	logger      *slog.Logger
	retryDelay  time.Duration
	maxAttempts int
}

func NewRelay(url, queue string, sender Sender, logger *slog.Logger) *Relay {
	return &Relay{
		url:         url,
		queue:       queue,
		sender:      sender,
		logger:      logger.With("component", "mail_relay"),
		retryDelay:  defaultRetryDelay,
		maxAttempts: maxDeliveryAttempts,
	}
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (r *Relay) Run(ctx context.Context) error {
	conn, ch, err := openQueue(r.url, r.queue)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, r.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	r.logger.Info("relay started", "queue", r.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			r.handle(ctx, ch, d)
		}
	}
}

// handle settles one delivery. A failed send is republished with its attempt count after
// retryDelay; after maxAttempts the message is rejected, which dead-letters it when the
// queue has a dead-letter exchange and drops it otherwise.
func (r *Relay) handle(ctx context.Context, pub publisher, d amqp.Delivery) {
	err := r.deliver(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
		return
	case errors.Is(err, errMalformedMessage):
		r.logger.ErrorContext(ctx, "dropping queued email", "error", err)
		_ = d.Nack(false, false)
		return
	}

	attempts := deliveryAttempts(d) + 1
	if attempts >= r.maxAttempts {
		r.logger.ErrorContext(ctx, "giving up on queued email", "attempts", attempts, "error", err)
		_ = d.Nack(false, false)
		return
	}

	r.logger.WarnContext(ctx, "delivery failed, retrying", "attempts", attempts, "delay", r.retryDelay, "error", err)
	if !sleep(ctx, r.retryDelay) {
		_ = d.Nack(false, true)
		return
	}

	retry := amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.Timestamp,
		Headers:      amqp.Table{attemptsHeader: int32(attempts)},
	}
	if err := pub.PublishWithContext(ctx, "", r.queue, false, false, retry); err != nil {
		r.logger.ErrorContext(ctx, "republish queued email", "error", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func deliveryAttempts(d amqp.Delivery) int {
	switch v := d.Headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Relay) deliver(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if msg.To == "" {
		return fmt.Errorf("%w: empty recipient", errMalformedMessage)
	}
	if err := r.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "email delivered", "subject", msg.Subject)
	return nil
}

func openQueue(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	return conn, ch, nil
}
