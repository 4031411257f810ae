// Package hub implements the local event hub that fans realtime events out
// to subscribers.
package hub

import (
	"sync"

	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/domain/ports"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is the capacity of the broadcast queue.
const DefaultBufferSize = 256

// Hub is the central event dispatcher that fans out events to all subscribers.
//
// Events are delivered by a single goroutine, so every subscriber sees
// events in the order they were published. Subscribe and Unsubscribe take
// effect immediately and may be called from inside a subscriber's Send.
type Hub struct {
	// subscribers holds all active subscribers
	subscribers map[string]ports.Subscriber

	// order keeps registration order for deterministic delivery
	order []string

	// broadcast channel receives events to be broadcast
	broadcast chan events.Event

	// mu protects subscribers, order and running
	mu sync.RWMutex

	// done signals when the hub should stop
	done chan struct{}

	// stopped is closed once the run loop has exited
	stopped chan struct{}

	// running indicates if the hub is running
	running bool
}

// New creates a new Hub.
func New() *Hub {
	return NewWithBuffer(DefaultBufferSize)
}

// NewWithBuffer creates a new Hub with a custom broadcast queue size.
func NewWithBuffer(size int) *Hub {
	if size < 1 {
		size = 1
	}
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		broadcast:   make(chan events.Event, size),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start begins the hub's main loop.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	select {
	case <-h.done:
		h.mu.Unlock()
		return nil
	default:
	}
	h.running = true
	h.mu.Unlock()

	log.Debug().Msg("event hub started")

	go h.run()
	return nil
}

// Stop gracefully stops the hub. Events still queued are dropped.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	close(h.done)
	<-h.stopped

	// Close all subscribers
	h.mu.Lock()
	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)
	h.order = nil
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

// run is the main event loop.
func (h *Hub) run() {
	defer close(h.stopped)

	for {
		select {
		case <-h.done:
			return

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// deliver sends event to a snapshot of the current subscribers. The lock is
// not held during Send so subscribers may (un)subscribe from their handler.
func (h *Hub) deliver(event events.Event) {
	h.mu.RLock()
	subs := make([]ports.Subscriber, 0, len(h.order))
	for _, id := range h.order {
		if sub, ok := h.subscribers[id]; ok {
			subs = append(subs, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", sub.ID()).
				Str("event_type", string(event.Type())).
				Err(err).
				Msg("failed to send event to subscriber")
			h.Unsubscribe(sub.ID())
		}
	}
}

// Publish queues an event for delivery to all subscribers. It blocks while
// the queue is full and returns without delivering once the hub is stopped.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.broadcast <- event:
		log.Trace().
			Str("event_type", string(event.Type())).
			Msg("event published")
	case <-h.done:
		log.Debug().
			Str("event_type", string(event.Type())).
			Msg("event dropped: hub stopped")
	}
}

// Subscribe adds a new subscriber. A subscriber with an existing ID
// replaces the previous one.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	h.mu.Lock()
	if old, ok := h.subscribers[sub.ID()]; ok {
		_ = old.Close()
	} else {
		h.order = append(h.order, sub.ID())
	}
	h.subscribers[sub.ID()] = sub
	h.mu.Unlock()

	log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")
}

// Unsubscribe removes a subscriber by ID and closes it. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		for i, existing := range h.order {
			if existing == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	h.mu.Unlock()

	if ok {
		_ = sub.Close()
		log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Ensure Hub implements ports.EventPublisher.
var _ ports.EventPublisher = (*Hub)(nil)
