// Package memory is an in-process broker used by tests and local runs.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
)

var ErrClosed = errors.New("memory broker closed")

// Broker stores every published message and fans it out to durable
// subscriptions whose subject filter matches.
type Broker struct {
	mu        sync.Mutex
	published []broker.Message
	subs      map[string]*Subscription
	closed    bool

	// PublishHook, when set, runs before a message is stored. A non-nil
	// error fails the publish and the message is dropped.
	PublishHook func(broker.Message) error
	// AckHook, when set, decides the outcome of every Ack call. A failed
	// ack puts the message back at the head of its durable.
	AckHook func(broker.Message) error
}

func New() *Broker {
	return &Broker{subs: map[string]*Subscription{}}
}

func (b *Broker) Publish(_ context.Context, msg broker.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.PublishHook != nil {
		if err := b.PublishHook(msg); err != nil {
			return err
		}
	}
	msg = cloneMessage(msg)
	b.published = append(b.published, msg)
	for _, sub := range b.subs {
		if broker.MatchAny(sub.subjects, msg.Subject) {
			sub.enqueue(msg)
		}
	}
	return nil
}

// Published returns a copy of every message accepted so far, in order.
func (b *Broker) Published() []broker.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.Message, len(b.published))
	copy(out, b.published)
	return out
}

// PullSubscribe replays already published matching messages into a new
// durable, like a stream consumer starting from the beginning. An
// existing durable is returned as is.
func (b *Broker) PullSubscribe(_ context.Context, durable string, subjects []string) (broker.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if sub, ok := b.subs[durable]; ok {
		return sub, nil
	}
	sub := &Subscription{
		owner:    b,
		subjects: append([]string(nil), subjects...),
		notify:   make(chan struct{}, 1),
	}
	for _, msg := range b.published {
		if broker.MatchAny(subjects, msg.Subject) {
			sub.enqueue(msg)
		}
	}
	b.subs[durable] = sub
	return sub, nil
}

// Deliver queues msg on the durable directly, bypassing subject filters.
// It is meant for feeding raw or foreign payloads to a consumer.
func (b *Broker) Deliver(durable string, msg broker.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[durable]
	if !ok {
		sub = &Subscription{owner: b, notify: make(chan struct{}, 1)}
		b.subs[durable] = sub
	}
	sub.enqueue(cloneMessage(msg))
}

func (b *Broker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Subscription is a durable pull subscription on the memory broker.
type Subscription struct {
	owner    *Broker
	subjects []string
	queue    []broker.Message
	acked    []broker.Message
	notify   chan struct{}
}

// enqueue must be called with owner.mu held.
func (s *Subscription) enqueue(msg broker.Message) {
	s.queue = append(s.queue, msg)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) Fetch(ctx context.Context, max int, wait time.Duration) ([]broker.Delivery, error) {
	if max <= 0 {
		max = 1
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		if out := s.take(max); len(out) > 0 {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-s.notify:
		}
	}
}

func (s *Subscription) take(max int) []broker.Delivery {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	n := min(max, len(s.queue))
	out := make([]broker.Delivery, 0, n)
	for _, msg := range s.queue[:n] {
		out = append(out, &delivery{sub: s, msg: msg})
	}
	s.queue = s.queue[n:]
	return out
}

// Acked returns the messages acknowledged on this subscription.
func (s *Subscription) Acked() []broker.Message {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	out := make([]broker.Message, len(s.acked))
	copy(out, s.acked)
	return out
}

// Pending reports how many messages wait to be fetched.
func (s *Subscription) Pending() int {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) Close() error { return nil }

type delivery struct {
	sub *Subscription
	msg broker.Message
}

func (d *delivery) Message() broker.Message { return d.msg }

func (d *delivery) Ack(context.Context) error {
	d.sub.owner.mu.Lock()
	defer d.sub.owner.mu.Unlock()
	if d.sub.owner.AckHook != nil {
		if err := d.sub.owner.AckHook(d.msg); err != nil {
			d.sub.queue = append([]broker.Message{d.msg}, d.sub.queue...)
			select {
			case d.sub.notify <- struct{}{}:
			default:
			}
			return err
		}
	}
	d.sub.acked = append(d.sub.acked, d.msg)
	return nil
}

func cloneMessage(msg broker.Message) broker.Message {
	out := msg
	out.Data = append([]byte(nil), msg.Data...)
	if msg.Header != nil {
		out.Header = make(broker.Header, len(msg.Header))
		for k, v := range msg.Header {
			out.Header[k] = v
		}
	}
	return out
}
