package events

// DisconnectPayload is the payload for local disconnect events.
type DisconnectPayload struct {
	Reason     string `json:"reason,omitempty"`
	Unexpected bool   `json:"unexpected"`
}

// ErrorPayload is the payload for local error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewConnectEvent creates a local connect event.
func NewConnectEvent(url string) *BaseEvent {
	return NewEvent(EventTypeConnect, map[string]string{"url": url})
}

// NewDisconnectEvent creates a local disconnect event.
func NewDisconnectEvent(reason string, unexpected bool) *BaseEvent {
	return NewEvent(EventTypeDisconnect, DisconnectPayload{
		Reason:     reason,
		Unexpected: unexpected,
	})
}

// NewErrorEvent creates a local error event.
func NewErrorEvent(err error) *BaseEvent {
	return NewEvent(EventTypeError, ErrorPayload{Message: err.Error()})
}
