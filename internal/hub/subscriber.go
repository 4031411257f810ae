package hub

import (
	"fmt"
	"sync"

	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/rs/zerolog/log"
)

// ChannelSubscriber is a subscriber that sends events to a channel.
type ChannelSubscriber struct {
	id     string
	send   chan events.Event
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewChannelSubscriber creates a new channel-based subscriber.
func NewChannelSubscriber(id string, bufferSize int) *ChannelSubscriber {
	return &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Send sends an event to the subscriber.
func (s *ChannelSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSubscriberClosed
	}

	select {
	case s.send <- event:
		return nil
	default:
		// Channel full, subscriber is too slow
		return fmt.Errorf("subscriber %s buffer full: %w", s.id, domain.ErrSubscriberClosed)
	}
}

// Close closes the subscriber.
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events returns the channel to receive events from.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}

// HandlerFunc handles one delivered event.
type HandlerFunc func(event events.Event)

// CallbackSubscriber invokes a handler synchronously for every event.
// Because the hub delivers from one goroutine, the handler sees events in
// publish order.
type CallbackSubscriber struct {
	id      string
	handler HandlerFunc
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewCallbackSubscriber creates a new callback subscriber.
func NewCallbackSubscriber(id string, handler HandlerFunc) *CallbackSubscriber {
	return &CallbackSubscriber{
		id:      id,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *CallbackSubscriber) ID() string {
	return s.id
}

// Send runs the handler. A panicking handler is logged and does not stop
// delivery to other subscribers.
func (s *CallbackSubscriber) Send(event events.Event) (err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrSubscriberClosed
	}
	if s.handler == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("subscriber_id", s.id).
				Str("event_type", string(event.Type())).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.handler(event)
	return nil
}

// Close closes the subscriber. No handler call starts after Close returns.
func (s *CallbackSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *CallbackSubscriber) Done() <-chan struct{} {
	return s.done
}
