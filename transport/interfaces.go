// Package transport defines the pub/sub channel abstraction the chat
// engine publishes signed envelopes on, and the events transports report.
package transport

import (
	"context"

	"github.com/driftwire/driftwire-go/core/envelope"
)

// Transport is the base interface for all transport implementations.
// Implementations verify envelope signatures before dispatching to the
// message handler; the engine never sees an unverified envelope.
type Transport interface {
	// Start begins the transport's connection and message handling.
	// The provided context controls the transport's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the transport.
	Stop() error
	// IsConnected returns true if the transport is currently connected.
	IsConnected() bool
	// SetMessageHandler sets the callback for verified inbound envelopes.
	SetMessageHandler(fn MessageHandler)
	// SetStateHandler sets the callback for transport state changes.
	SetStateHandler(fn StateHandler)
	// Publish sends a signed envelope on the named channel.
	Publish(channel string, raw *envelope.RawMessage) error
}

// MessageHandler is called for each verified envelope received on a
// subscribed channel.
type MessageHandler func(raw *envelope.RawMessage, channel string)

// StateHandler is called when the transport state changes.
type StateHandler func(transport Transport, event Event)

// Event represents transport state change events.
type Event int

const (
	// EventConnected is fired when the transport connects.
	EventConnected Event = iota
	// EventDisconnected is fired when the transport disconnects.
	EventDisconnected
	// EventReconnecting is fired when the transport is attempting to reconnect.
	EventReconnecting
	// EventError is fired when an error occurs.
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// BoundChannel fixes a Transport to one channel, satisfying the narrow
// publisher contract the session needs.
type BoundChannel struct {
	transport Transport
	channel   string
}

// Bind returns a publisher fixed to the given channel.
func Bind(t Transport, channel string) *BoundChannel {
	return &BoundChannel{transport: t, channel: channel}
}

// Publish sends the envelope on the bound channel.
func (b *BoundChannel) Publish(raw *envelope.RawMessage) error {
	return b.transport.Publish(b.channel, raw)
}
