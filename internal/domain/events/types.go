// Package events defines the realtime event types exchanged with the backend.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Client -> server
	EventTypeStreamAIResponse EventType = "stream_ai_response"

	// Server -> client
	EventTypeAIStreamChunk EventType = "ai_stream_chunk"
	EventTypeFileUpdated   EventType = "file_updated"
	EventTypeGitUpdate     EventType = "git_update"
	EventTypeAIResponse    EventType = "ai_response"

	// Local connection lifecycle events, never sent over the wire
	EventTypeConnect    EventType = "connect"
	EventTypeDisconnect EventType = "disconnect"
	EventTypeError      EventType = "error"
)

// IsLocal reports whether t is a connection lifecycle event generated by
// the client itself.
func (t EventType) IsLocal() bool {
	switch t {
	case EventTypeConnect, EventTypeDisconnect, EventTypeError:
		return true
	}
	return false
}

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// Decode unmarshals the payload into v.
	Decode(v interface{}) error
}

// BaseEvent is the wire envelope for every realtime event.
type BaseEvent struct {
	EventType EventType       `json:"event"`
	EventTime time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the payload into v.
func (e *BaseEvent) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.EventType)
	}
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new event with the given type and payload.
// A payload that cannot be marshaled is recorded as null.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   marshalPayload(payload),
	}
}

// NewEventWithRequestID creates a new event with a request ID for correlation.
func NewEventWithRequestID(eventType EventType, payload interface{}, requestID string) *BaseEvent {
	e := NewEvent(eventType, payload)
	e.RequestID = requestID
	return e
}

func marshalPayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// legacyFrame is the {"type", "content"} form the backend's /ws handler
// answers with.
type legacyFrame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Parse decodes a wire frame. Both the envelope form and the legacy
// {"type", "content"} form are accepted.
func Parse(data []byte) (*BaseEvent, error) {
	var e BaseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("invalid event frame: %w", err)
	}
	if e.EventType != "" {
		if e.EventTime.IsZero() {
			e.EventTime = time.Now().UTC()
		}
		return &e, nil
	}

	var legacy legacyFrame
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("invalid event frame: %w", err)
	}
	if legacy.Type == "" {
		return nil, fmt.Errorf("invalid event frame: missing event name")
	}
	return &BaseEvent{
		EventType: EventType(legacy.Type),
		EventTime: time.Now().UTC(),
		Payload:   legacy.Content,
	}, nil
}
