package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/hub"
)

// Handler receives one event.
type Handler func(event events.Event)

// Subscription is a registered handler. Unsubscribe removes exactly that
// handler.
type Subscription struct {
	id   string
	hub  *hub.Hub
	once sync.Once
}

// ID returns the subscription's hub subscriber ID.
func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe removes the handler. It is safe to call more than once and
// from inside the handler itself.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.Unsubscribe(s.id)
	})
}

// Subscribe registers handler for events named eventType. Handlers for the
// same name accumulate and run in registration order for each event, in
// arrival order.
func (c *Client) Subscribe(eventType events.EventType, handler Handler) *Subscription {
	return c.subscribe(handler, eventType)
}

// SubscribeAll registers handler for every event, including local
// connect, disconnect and error events.
func (c *Client) SubscribeAll(handler Handler) *Subscription {
	return c.subscribe(handler)
}

func (c *Client) subscribe(handler Handler, types ...events.EventType) *Subscription {
	id := uuid.NewString()
	inner := hub.NewCallbackSubscriber(id, hub.HandlerFunc(handler))
	c.hub.Subscribe(hub.NewFilteredSubscriber(inner, types...))

	log.Debug().Str("subscription", id).Interface("events", types).Msg("realtime subscribe")
	return &Subscription{id: id, hub: c.hub}
}

// SubscriberCount returns the number of active subscriptions.
func (c *Client) SubscriberCount() int {
	return c.hub.SubscriberCount()
}
