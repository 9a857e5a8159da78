// Package natsjs adapts NATS JetStream to the broker interfaces. Every
// subject lives in one stream and durables are JetStream pull consumers.
package natsjs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Config struct {
	URL    string
	Stream string
	// Subjects bound to the stream, e.g. "User.>" and "Task.>".
	Subjects []string
	// Name identifies the connection on the server.
	Name string
}

const pingTimeout = 2 * time.Second

type Broker struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

var _ broker.Broker = (*Broker)(nil)

// Connect dials the server and creates or updates the stream.
func Connect(ctx context.Context, cfg Config) (*Broker, error) {
	if cfg.Stream == "" || len(cfg.Subjects) == 0 {
		return nil, errors.New("nats stream and subjects are required")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: cfg.Subjects,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("stream %s: %w", cfg.Stream, err)
	}
	return &Broker{nc: nc, js: js, stream: cfg.Stream}, nil
}

// Publish waits for the stream acknowledgement. The event id header
// doubles as the JetStream message id, so the server drops duplicates
// inside its dedupe window.
func (b *Broker) Publish(ctx context.Context, msg broker.Message) error {
	m := nats.NewMsg(msg.Subject)
	m.Data = msg.Data
	for k, v := range msg.Header {
		m.Header[k] = []string{v}
	}
	var opts []jetstream.PublishOpt
	if id := msg.Header[broker.HeaderEventID]; id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	_, err := b.js.PublishMsg(ctx, m, opts...)
	return err
}

func (b *Broker) PullSubscribe(ctx context.Context, durable string, subjects []string) (broker.Subscription, error) {
	if durable == "" {
		return nil, errors.New("nats pull subscription needs a durable name")
	}
	cons, err := b.js.CreateOrUpdateConsumer(ctx, b.stream, jetstream.ConsumerConfig{
		Durable:        durable,
		FilterSubjects: subjects,
		AckPolicy:      jetstream.AckExplicitPolicy,
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("consumer %s: %w", durable, err)
	}
	return &subscription{consumer: cons}, nil
}

// Ping round-trips to the server. FlushWithContext insists on a deadline,
// so one is added when ctx has none.
func (b *Broker) Ping(ctx context.Context) error {
	if !b.nc.IsConnected() {
		return fmt.Errorf("nats connection %s", b.nc.Status())
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}
	return b.nc.FlushWithContext(ctx)
}

func (b *Broker) Close() error {
	b.nc.Close()
	return nil
}

type subscription struct {
	consumer jetstream.Consumer
}

// Fetch waits up to wait for a batch. Cancelling ctx abandons the pull;
// anything it had already pulled is redelivered after the ack wait.
func (s *subscription) Fetch(ctx context.Context, max int, wait time.Duration) ([]broker.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := s.consumer.Fetch(max, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, err
	}
	var out []broker.Delivery
	msgs := batch.Messages()
loop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				break loop
			}
			out = append(out, &delivery{msg: m})
		}
	}
	if err := batch.Error(); err != nil && len(out) == 0 && !isTimeout(err) {
		return nil, err
	}
	return out, nil
}

// Close leaves the durable on the server so other instances keep it.
func (s *subscription) Close() error { return nil }

type delivery struct {
	msg jetstream.Msg
}

func (d *delivery) Message() broker.Message {
	var header broker.Header
	if h := d.msg.Headers(); len(h) > 0 {
		header = make(broker.Header, len(h))
		for k, v := range h {
			if len(v) > 0 {
				header[k] = v[0]
			}
		}
	}
	return broker.Message{
		Subject: d.msg.Subject(),
		Data:    d.msg.Data(),
		Header:  header,
	}
}

// Ack waits for the server to confirm the acknowledgement.
func (d *delivery) Ack(ctx context.Context) error {
	return d.msg.DoubleAck(ctx)
}

func isTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
