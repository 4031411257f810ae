// Package ports defines the interfaces shared by the realtime client, the
// local event hub and the HTTP client.
package ports

import (
	"github.com/brianly1003/aidev/internal/domain/events"
)

// Subscriber receives events fanned out by the hub.
type Subscriber interface {
	ID() string

	// Send delivers one event. It fails once the subscriber is closed.
	Send(event events.Event) error

	Close() error

	// Done is closed when the subscriber stops accepting events.
	Done() <-chan struct{}
}

// EventPublisher accepts events for delivery to subscribers. The local
// file watcher publishes through it.
type EventPublisher interface {
	Publish(event events.Event)
}

// TokenSource yields the bearer token to attach to outbound requests. An
// empty string means no credential is available.
type TokenSource interface {
	Token() string
}
