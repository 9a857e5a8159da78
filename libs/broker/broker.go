// Package broker describes the message broker capability the event core
// depends on. Adapters live in the sub-packages.
package broker

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/md-rashed-zaman/tasktracker/libs/broker Publisher,Subscriber

import (
	"context"
	"time"
)

// Header carries message metadata (event id, name, version, trace context).
type Header map[string]string

// Message is one outgoing or delivered broker message.
type Message struct {
	Subject string
	// Key is the partitioning key (aggregate public id). Brokers without
	// partitions ignore it.
	Key    string
	Data   []byte
	Header Header
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Delivery is a message received from a pull subscription. It stays
// unacknowledged until Ack succeeds.
type Delivery interface {
	Message() Message
	Ack(ctx context.Context) error
}

type Subscription interface {
	// Fetch returns up to max deliveries, waiting at most wait for the
	// first one. A timeout with nothing to deliver is not an error: the
	// returned slice is empty.
	Fetch(ctx context.Context, max int, wait time.Duration) ([]Delivery, error)
	Close() error
}

type Subscriber interface {
	// PullSubscribe binds to the durable subscription named durable,
	// creating it when needed, filtered to subjects.
	PullSubscribe(ctx context.Context, durable string, subjects []string) (Subscription, error)
}

type Broker interface {
	Publisher
	Subscriber
	Ping(ctx context.Context) error
	Close() error
}

// Well-known header keys.
const (
	HeaderEventID      = "event_id"
	HeaderEventName    = "event_name"
	HeaderEventVersion = "event_version"
)
