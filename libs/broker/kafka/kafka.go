// Package kafka adapts segmentio/kafka-go to the broker interfaces. Topics
// are the event subjects and consumer groups are the durable names.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	kafkago "github.com/segmentio/kafka-go"
)

var ErrWildcard = errors.New("kafka subscriptions take exact topics")

type Broker struct {
	brokers []string
	writer  *kafkago.Writer

	mu      sync.Mutex
	readers []*kafkago.Reader
}

var _ broker.Broker = (*Broker)(nil)

func New(brokers []string) (*Broker, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	return &Broker{
		brokers: brokers,
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (b *Broker) Publish(ctx context.Context, msg broker.Message) error {
	return b.writer.WriteMessages(ctx, kafkago.Message{
		Topic:   msg.Subject,
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: toKafkaHeaders(msg.Header),
	})
}

func (b *Broker) PullSubscribe(_ context.Context, durable string, subjects []string) (broker.Subscription, error) {
	if durable == "" || len(subjects) == 0 {
		return nil, errors.New("kafka subscription needs a group id and at least one topic")
	}
	for _, s := range subjects {
		if broker.HasWildcard([]string{s}) {
			return nil, fmt.Errorf("%w: %s", ErrWildcard, s)
		}
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     durable,
		GroupTopics: subjects,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()
	return &subscription{reader: reader}, nil
}

// Ping dials the first reachable broker.
func (b *Broker) Ping(ctx context.Context) error {
	dialer := kafkago.Dialer{Timeout: 2 * time.Second}
	var errs []error
	for _, addr := range b.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	readers := b.readers
	b.readers = nil
	b.mu.Unlock()

	errs := []error{b.writer.Close()}
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

type subscription struct {
	reader *kafkago.Reader
}

func (s *subscription) Fetch(ctx context.Context, max int, wait time.Duration) ([]broker.Delivery, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var out []broker.Delivery
	for len(out) < max {
		m, err := s.reader.FetchMessage(fetchCtx)
		if err != nil {
			if len(out) > 0 || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
				break
			}
			return nil, err
		}
		out = append(out, &delivery{reader: s.reader, msg: m})
	}
	return out, nil
}

func (s *subscription) Close() error {
	// The reader is closed with the broker; closing it twice errors.
	return nil
}

type delivery struct {
	reader *kafkago.Reader
	msg    kafkago.Message
}

func (d *delivery) Message() broker.Message {
	return broker.Message{
		Subject: d.msg.Topic,
		Key:     string(d.msg.Key),
		Data:    d.msg.Value,
		Header:  fromKafkaHeaders(d.msg.Headers),
	}
}

func (d *delivery) Ack(ctx context.Context) error {
	return d.reader.CommitMessages(ctx, d.msg)
}

func toKafkaHeaders(h broker.Header) []kafkago.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafkago.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// fromKafkaHeaders keeps the last value of a repeated key.
func fromKafkaHeaders(headers []kafkago.Header) broker.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make(broker.Header, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
