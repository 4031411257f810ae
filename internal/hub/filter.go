package hub

import (
	"sort"
	"sync"

	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/domain/ports"
)

// FilteredSubscriber wraps a subscriber and forwards only events whose type
// is in its filter. An empty filter forwards everything.
type FilteredSubscriber struct {
	inner ports.Subscriber
	types map[events.EventType]bool
	mu    sync.RWMutex
}

// NewFilteredSubscriber creates a new filtered subscriber wrapping the given
// subscriber, initially accepting the given event types.
func NewFilteredSubscriber(inner ports.Subscriber, types ...events.EventType) *FilteredSubscriber {
	f := &FilteredSubscriber{
		inner: inner,
		types: make(map[events.EventType]bool, len(types)),
	}
	for _, t := range types {
		f.types[t] = true
	}
	return f
}

// ID returns the subscriber's unique identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send sends an event to the subscriber if it passes the filter.
func (f *FilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Send(event)
}

// Close closes the subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// Accept adds an event type to the filter.
func (f *FilteredSubscriber) Accept(eventType events.EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[eventType] = true
}

// Reject removes an event type from the filter.
func (f *FilteredSubscriber) Reject(eventType events.EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.types, eventType)
}

// AcceptAll clears the filter, forwarding all events.
func (f *FilteredSubscriber) AcceptAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = make(map[events.EventType]bool)
}

// AcceptedTypes returns the filtered event types, sorted.
func (f *FilteredSubscriber) AcceptedTypes() []events.EventType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]events.EventType, 0, len(f.types))
	for t := range f.types {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// IsFiltering returns true if the subscriber is filtering by event type.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.types) > 0
}

func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.types) == 0 {
		return true
	}
	return f.types[event.Type()]
}
