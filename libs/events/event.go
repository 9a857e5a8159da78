// Package events maps domain event types to their wire identity and
// moves them between services.
//
// Every event variant is a plain struct registered once at start-up under
// a (name, version) pair. The registry is the only place that knows how a
// Go type maps onto a topic, so producers and consumers agree on the wire
// format without sharing code.
package events

import "strconv"

// Event is a registered domain event payload.
type Event interface {
	// AggregateID returns the public id of the aggregate the event is
	// about. Brokers with partitions use it as the message key.
	AggregateID() string
}

// Identity is the stable wire identity of an event variant.
type Identity struct {
	Name    string
	Version int
}

// Topic is the routing subject "{name}.{version}".
func (i Identity) Topic() string {
	return i.Name + "." + strconv.Itoa(i.Version)
}

func (i Identity) String() string { return i.Topic() }
