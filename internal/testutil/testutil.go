// Package testutil provides shared test utilities, mocks and a fake
// backend for aidev tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/domain/ports"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id       string
	events   []events.Event
	mu       sync.Mutex
	closed   bool
	sendErr  error
	sendFunc func(events.Event) error
	done     chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:     id,
		events: make([]events.Event, 0),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event and returns any configured error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendFunc != nil {
		return m.sendFunc(e)
	}

	if m.sendErr != nil {
		return m.sendErr
	}

	m.events = append(m.events, e)
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// IsClosed returns whether the subscriber was closed.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError configures an error to return on Send.
func (m *MockSubscriber) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetSendFunc sets a custom function for Send behavior.
func (m *MockSubscriber) SetSendFunc(fn func(events.Event) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendFunc = fn
}

// ClearEvents removes all recorded events.
func (m *MockSubscriber) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
}

// Ensure MockSubscriber implements ports.Subscriber.
var _ ports.Subscriber = (*MockSubscriber)(nil)

// Eventually polls cond every 5ms until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("%s: condition not met within %v", msg, timeout)
	}
}
