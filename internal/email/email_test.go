package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ErlanBelekov/devlife/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/gomail.v2"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSender struct {
	send func(ctx context.Context, to, subject, body string) error
}

func (s *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, body)
}

type fakePublisher struct {
	published []amqp.Publishing
	key       string
	err       error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.key = key
	p.published = append(p.published, msg)
	return p.err
}

type fakeConn struct {
	closed bool
}

func (c *fakeConn) IsClosed() bool { return c.closed }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// queueOpener hands out fresh connections around pubs in order and counts dials.
type queueOpener struct {
	pubs  []*fakePublisher
	conns []*fakeConn
	err   error
}

func (o *queueOpener) open(string, string) (brokerConn, publisher, error) {
	if o.err != nil {
		return nil, nil, o.err
	}
	pub := o.pubs[len(o.conns)]
	conn := &fakeConn{}
	o.conns = append(o.conns, conn)
	return conn, pub, nil
}

func newTestQueueSender(o *queueOpener) *QueueSender {
	return &QueueSender{queue: "verification_emails", open: o.open}
}

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestVerificationEmail(t *testing.T) {
	subject, body := VerificationEmail("http://localhost:5173", "a.b+c", "01234567")

	if subject != verificationSubject {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "<strong>01234567</strong>") {
		t.Errorf("body does not contain the code: %s", body)
	}
	if !strings.Contains(body, "/email-verification?ticket=a.b%2Bc") {
		t.Errorf("body does not contain the escaped ticket link: %s", body)
	}
}

func TestNewSender_PicksTransport(t *testing.T) {
	tests := []struct {
		transport string
		check     func(Sender) bool
	}{
		{"log", func(s Sender) bool { _, ok := s.(*LogSender); return ok }},
		{"resend", func(s Sender) bool { _, ok := s.(*ResendSender); return ok }},
		{"smtp", func(s Sender) bool { _, ok := s.(*SMTPSender); return ok }},
	}
	for _, tt := range tests {
		cfg := &config.Config{EmailTransport: tt.transport, ResendAPIKey: "re_x", ResendFrom: "a@b.c", SMTPHost: "localhost", SMTPPort: 25}
		s, err := NewSender(cfg, discard)
		if err != nil {
			t.Fatalf("%s: %v", tt.transport, err)
		}
		if !tt.check(s) {
			t.Errorf("%s: got %T", tt.transport, s)
		}
	}
}

func TestNewDeliverySender_PrefersSMTP(t *testing.T) {
	both := &config.Mailer{SMTPHost: "localhost", SMTPPort: 25, ResendAPIKey: "re_x", ResendFrom: "a@b.c"}
	if s, ok := NewDeliverySender(both, discard).(*SMTPSender); !ok {
		t.Errorf("got %T, want *SMTPSender", s)
	}
	if s, ok := NewDeliverySender(&config.Mailer{ResendAPIKey: "re_x"}, discard).(*ResendSender); !ok {
		t.Errorf("got %T, want *ResendSender", s)
	}
	if s, ok := NewDeliverySender(&config.Mailer{}, discard).(*LogSender); !ok {
		t.Errorf("got %T, want *LogSender", s)
	}
}

func TestQueueSender_PublishesPersistentJSON(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestQueueSender(&queueOpener{pubs: []*fakePublisher{pub}})

	if err := s.Send(context.Background(), "a@x.com", "subj", "<p>hi</p>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.key != "verification_emails" {
		t.Errorf("routing key = %q", pub.key)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages", len(pub.published))
	}
	p := pub.published[0]
	if p.DeliveryMode != amqp.Persistent {
		t.Error("expected persistent delivery")
	}
	var msg Message
	if err := json.Unmarshal(p.Body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg != (Message{To: "a@x.com", Subject: "subj", Body: "<p>hi</p>"}) {
		t.Errorf("message = %+v", msg)
	}
}

func TestQueueSender_ReconnectsAfterBrokerDrop(t *testing.T) {
	first, second := &fakePublisher{}, &fakePublisher{}
	o := &queueOpener{pubs: []*fakePublisher{first, second}}
	s := newTestQueueSender(o)
	ctx := context.Background()

	if err := s.Send(ctx, "a@x.com", "s", "b"); err != nil {
		t.Fatal(err)
	}
	o.conns[0].closed = true

	if err := s.Send(ctx, "b@x.com", "s", "b"); err != nil {
		t.Fatalf("send after drop: %v", err)
	}
	if len(o.conns) != 2 || len(first.published) != 1 || len(second.published) != 1 {
		t.Errorf("dials=%d first=%d second=%d", len(o.conns), len(first.published), len(second.published))
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping after reconnect: %v", err)
	}
}

func TestQueueSender_RetriesOnceOnDeadChannel(t *testing.T) {
	dead := &fakePublisher{err: errors.New("channel closed")}
	fresh := &fakePublisher{}
	o := &queueOpener{pubs: []*fakePublisher{dead, fresh}}
	s := newTestQueueSender(o)

	if err := s.Send(context.Background(), "a@x.com", "s", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.conns[0].closed {
		t.Error("the broken connection should be closed")
	}
	if len(fresh.published) != 1 {
		t.Errorf("fresh channel published %d messages", len(fresh.published))
	}
}

func TestQueueSender_PublishError(t *testing.T) {
	failing := func() *fakePublisher { return &fakePublisher{err: errors.New("channel closed")} }
	s := newTestQueueSender(&queueOpener{pubs: []*fakePublisher{failing(), failing()}})
	if err := s.Send(context.Background(), "a@x.com", "s", "b"); err == nil {
		t.Error("expected error")
	}
}

func TestQueueSender_BrokerUnreachable(t *testing.T) {
	s := newTestQueueSender(&queueOpener{err: errors.New("connection refused")})
	if err := s.Ping(context.Background()); err == nil {
		t.Error("ping should fail while the broker is unreachable")
	}
	if err := s.Send(context.Background(), "a@x.com", "s", "b"); err == nil {
		t.Error("send should fail while the broker is unreachable")
	}
}

func TestRelay_HandleSettlesDeliveries(t *testing.T) {
	valid, _ := json.Marshal(Message{To: "a@x.com", Subject: "s", Body: "b"})
	sendErr := errors.New("smtp down")

	tests := []struct {
		name        string
		body        []byte
		attempts    any
		sendErr     error
		wantAcks    int
		wantNacks   int
		wantRequeue bool
		wantRepub   int32
	}{
		{name: "delivered", body: valid, wantAcks: 1},
		{name: "malformed", body: []byte("nope"), wantNacks: 1},
		{name: "first failure republished", body: valid, sendErr: sendErr, wantAcks: 1, wantRepub: 1},
		{name: "later failure counts up", body: valid, attempts: int32(2), sendErr: sendErr, wantAcks: 1, wantRepub: 3},
		{name: "gives up", body: valid, attempts: int64(maxDeliveryAttempts - 1), sendErr: sendErr, wantNacks: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRelay("", "q", &fakeSender{send: func(context.Context, string, string, string) error {
				return tt.sendErr
			}}, discard)
			r.retryDelay = 0

			ack := &fakeAcknowledger{}
			d := amqp.Delivery{Acknowledger: ack, Body: tt.body}
			if tt.attempts != nil {
				d.Headers = amqp.Table{attemptsHeader: tt.attempts}
			}
			pub := &fakePublisher{}
			r.handle(context.Background(), pub, d)

			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks || ack.requeue != tt.wantRequeue {
				t.Errorf("acks=%d nacks=%d requeue=%v", ack.acks, ack.nacks, ack.requeue)
			}
			if tt.wantRepub == 0 {
				if len(pub.published) != 0 {
					t.Errorf("republished %d messages", len(pub.published))
				}
				return
			}
			if len(pub.published) != 1 {
				t.Fatalf("republished %d messages", len(pub.published))
			}
			if got := pub.published[0].Headers[attemptsHeader]; got != tt.wantRepub {
				t.Errorf("attempts header = %v, want %d", got, tt.wantRepub)
			}
		})
	}
}

func TestRelay_CancelledDuringBackoffRequeues(t *testing.T) {
	valid, _ := json.Marshal(Message{To: "a@x.com"})
	r := NewRelay("", "q", &fakeSender{send: func(context.Context, string, string, string) error {
		return errors.New("smtp down")
	}}, discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}
	r.handle(ctx, pub, amqp.Delivery{Acknowledger: ack, Body: valid})

	if ack.nacks != 1 || !ack.requeue || len(pub.published) != 0 {
		t.Errorf("nacks=%d requeue=%v republished=%d", ack.nacks, ack.requeue, len(pub.published))
	}
}

func TestRelay_DeliversQueuedMessage(t *testing.T) {
	var gotTo, gotSubject string
	r := NewRelay("", "q", &fakeSender{send: func(_ context.Context, to, subject, _ string) error {
		gotTo, gotSubject = to, subject
		return nil
	}}, discard)

	body, _ := json.Marshal(Message{To: "a@x.com", Subject: "hello", Body: "b"})
	if err := r.deliver(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTo != "a@x.com" || gotSubject != "hello" {
		t.Errorf("delivered to %q with subject %q", gotTo, gotSubject)
	}
}

func TestRelay_MalformedMessage(t *testing.T) {
	r := NewRelay("", "q", &fakeSender{send: func(context.Context, string, string, string) error {
		t.Fatal("sender must not be called")
		return nil
	}}, discard)

	for _, body := range []string{"not json", `{"subject":"no recipient"}`} {
		if err := r.deliver(context.Background(), []byte(body)); !errors.Is(err, errMalformedMessage) {
			t.Errorf("deliver(%q) = %v, want errMalformedMessage", body, err)
		}
	}
}

func TestRelay_SendFailureIsRetryable(t *testing.T) {
	sendErr := errors.New("smtp down")
	r := NewRelay("", "q", &fakeSender{send: func(context.Context, string, string, string) error {
		return sendErr
	}}, discard)

	body, _ := json.Marshal(Message{To: "a@x.com"})
	err := r.deliver(context.Background(), body)
	if !errors.Is(err, sendErr) || errors.Is(err, errMalformedMessage) {
		t.Errorf("got %v", err)
	}
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{from: "noreply@devlife.dev", dialer: d}

	if err := s.Send(context.Background(), "a@x.com", "subj", "body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "a@x.com" {
		t.Errorf("To = %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "noreply@devlife.dev" {
		t.Errorf("From = %v", got)
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "a@x.com", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
	if len(d.sent) != 0 {
		t.Error("nothing should be dialed")
	}
}
