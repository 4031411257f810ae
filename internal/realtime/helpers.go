package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/domain/events"
)

// ChunkHandler receives one streamed chunk. done is set on the final chunk
// when the server marks it.
type ChunkHandler func(chunk string, done bool)

// StreamAIResponse asks the server to stream an answer to prompt over the
// realtime channel. Chunks tagged with another request's ID are ignored.
// The returned subscription must be unsubscribed by the caller.
func (c *Client) StreamAIResponse(ctx context.Context, prompt string, handler ChunkHandler) (*Subscription, error) {
	requestID := uuid.NewString()

	sub := c.Subscribe(events.EventTypeAIStreamChunk, func(e events.Event) {
		if base, ok := e.(*events.BaseEvent); ok && base.RequestID != "" && base.RequestID != requestID {
			return
		}

		var payload events.AIStreamChunkPayload
		if err := e.Decode(&payload); err == nil {
			handler(payload.Content, payload.Done)
			return
		}
		text, err := events.ChunkText(e)
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable stream chunk")
			return
		}
		handler(text, false)
	})

	if err := c.PublishEvent(ctx, events.NewStreamAIRequestEvent(prompt, requestID)); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// SubscribeFileUpdates registers fn for file_updated events.
func (c *Client) SubscribeFileUpdates(fn func(events.FileUpdatedPayload)) *Subscription {
	return c.Subscribe(events.EventTypeFileUpdated, func(e events.Event) {
		var payload events.FileUpdatedPayload
		if err := e.Decode(&payload); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable file_updated event")
			return
		}
		fn(payload)
	})
}

// SubscribeGitUpdates registers fn for git_update events.
func (c *Client) SubscribeGitUpdates(fn func(events.GitUpdatePayload)) *Subscription {
	return c.Subscribe(events.EventTypeGitUpdate, func(e events.Event) {
		var payload events.GitUpdatePayload
		if err := e.Decode(&payload); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable git_update event")
			return
		}
		fn(payload)
	})
}
