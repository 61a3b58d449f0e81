// Package transport defines the capability surface the messaging core
// requires from an external chat transport. Concrete providers (cloud
// API bridge, test fakes) implement Transport and feed Events; the
// core never touches the wire protocol itself.
package transport

import (
	"context"
	"fmt"
	"time"
)

// AckLevel is a transport-reported delivery milestone. Levels order
// the delivery lifecycle: sent < delivered < read.
type AckLevel int

const (
	AckUnknown   AckLevel = 0
	AckSent      AckLevel = 1
	AckDelivered AckLevel = 2
	AckRead      AckLevel = 3
)

// EventKind identifies what a transport event carries.
type EventKind string

const (
	EventPairingCode   EventKind = "pairing_code"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
	EventMessage       EventKind = "message"
	EventAck           EventKind = "ack"
)

// Inbound is a message received from the network.
type Inbound struct {
	ExternalID string
	From       string
	To         string
	Body       string
	MediaType  string
	Timestamp  time.Time
	Metadata   map[string]string
}

// Ack reports a delivery milestone for a previously sent message.
type Ack struct {
	ExternalID string
	Level      AckLevel
}

// Event is a single asynchronous notification from the transport.
// Exactly one payload field is meaningful for a given Kind.
type Event struct {
	Kind    EventKind
	Payload string // pairing code for EventPairingCode
	Reason  string // for EventAuthFailure / EventDisconnected
	Inbound *Inbound
	Ack     *Ack
}

// Transport is the provider-agnostic messaging client contract.
// Events must be delivered on a single channel in arrival order; the
// core consumes them serially.
type Transport interface {
	// Initialize starts the underlying session. Connection progress is
	// reported through Events, not the return value.
	Initialize(ctx context.Context) error

	// Send delivers a text body and returns the transport-assigned
	// message id.
	Send(ctx context.Context, to, body string) (string, error)

	// Events is the ordered stream of transport notifications. The
	// channel is closed when the transport shuts down.
	Events() <-chan Event
}

// Error wraps an opaque provider failure so callers can distinguish
// transport trouble from core errors.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
