package events

// StreamAIRequestPayload is the payload for stream_ai_response requests.
type StreamAIRequestPayload struct {
	Prompt string `json:"prompt"`
}

// AIStreamChunkPayload is the payload for ai_stream_chunk events.
type AIStreamChunkPayload struct {
	Content string `json:"content"`
	Done    bool   `json:"done,omitempty"`
}

// NewStreamAIRequestEvent creates a new stream_ai_response event.
func NewStreamAIRequestEvent(prompt, requestID string) *BaseEvent {
	return NewEventWithRequestID(EventTypeStreamAIResponse, StreamAIRequestPayload{
		Prompt: prompt,
	}, requestID)
}

// NewAIStreamChunkEvent creates a new ai_stream_chunk event.
func NewAIStreamChunkEvent(content string, done bool) *BaseEvent {
	return NewEvent(EventTypeAIStreamChunk, AIStreamChunkPayload{
		Content: content,
		Done:    done,
	})
}

// ChunkText extracts the chunk text from an ai_stream_chunk event. The
// backend sends either an object with a content field or a bare string.
func ChunkText(e Event) (string, error) {
	var payload AIStreamChunkPayload
	if err := e.Decode(&payload); err == nil {
		return payload.Content, nil
	}
	var text string
	if err := e.Decode(&text); err != nil {
		return "", err
	}
	return text, nil
}
