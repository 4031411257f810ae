// Package chat is the conversation view: an ordered log of user and
// assistant messages fed by plain or streamed answers.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/views"
)

// StreamPrefix selects a streamed answer for the rest of the input.
const StreamPrefix = "/stream "

// ErrorReply is appended when a request fails.
const ErrorReply = "Sorry, an error occurred."

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Backend is the part of the API client the chat view uses.
type Backend interface {
	Ask(ctx context.Context, prompt string) (string, error)
	StartStream(ctx context.Context, prompt string) (*api.Stream, error)
}

// View is the chat view model. It is safe for concurrent use.
type View struct {
	backend   Backend
	life      *views.Lifecycle
	observers views.Observers

	mu        sync.Mutex
	messages  []Message
	streaming bool
}

// New creates an empty chat view.
func New(backend Backend) *View {
	return &View{
		backend: backend,
		life:    views.NewLifecycle(),
	}
}

// OnUpdate registers fn to run after every change to the message log.
func (v *View) OnUpdate(fn func()) func() {
	return v.observers.Add(fn)
}

// Messages returns a copy of the conversation.
func (v *View) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Last returns the most recent message.
func (v *View) Last() (Message, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.messages) == 0 {
		return Message{}, false
	}
	return v.messages[len(v.messages)-1], true
}

// Streaming reports whether a streamed answer is being received.
func (v *View) Streaming() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.streaming
}

// Send appends input as a user message and requests an answer. Input
// starting with StreamPrefix is answered chunk by chunk. Blank input, or
// input sent while a stream is active, is rejected without a request. A
// failed request appends ErrorReply and returns the error.
func (v *View) Send(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return domain.NewValidationError("input", "cannot be empty")
	}

	streamed, prompt := streamPrompt(input)
	if streamed && prompt == "" {
		return domain.NewValidationError("input", "stream prompt cannot be empty")
	}

	v.mu.Lock()
	if v.life.Closed() {
		v.mu.Unlock()
		return domain.ErrAlreadyClosed
	}
	if v.streaming {
		v.mu.Unlock()
		return domain.NewValidationError("input", domain.ErrStreamInProgress.Error())
	}
	v.messages = append(v.messages, Message{Role: RoleUser, Content: input})
	if streamed {
		v.streaming = true
	}
	v.mu.Unlock()
	v.observers.Notify()

	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	if streamed {
		return v.stream(reqCtx, prompt)
	}

	reply, err := v.backend.Ask(reqCtx, input)
	if err != nil {
		return v.fail(err)
	}
	v.apply(func() {
		v.messages = append(v.messages, Message{Role: RoleAssistant, Content: reply})
	})
	return nil
}

// streamPrompt reports whether input asks for a streamed answer and
// returns the prompt after the command.
func streamPrompt(input string) (bool, string) {
	if strings.TrimSpace(input) == strings.TrimSpace(StreamPrefix) {
		return true, ""
	}
	if !strings.HasPrefix(input, StreamPrefix) {
		return false, ""
	}
	return true, strings.TrimSpace(strings.TrimPrefix(input, StreamPrefix))
}

func (v *View) stream(ctx context.Context, prompt string) error {
	defer func() {
		v.mu.Lock()
		v.streaming = false
		v.mu.Unlock()
		if !v.life.Closed() {
			v.observers.Notify()
		}
	}()

	s, err := v.backend.StartStream(ctx, prompt)
	if err != nil {
		return v.fail(err)
	}
	defer func() { _ = s.Close() }()

	index := -1
	v.apply(func() {
		v.messages = append(v.messages, Message{Role: RoleAssistant})
		index = len(v.messages) - 1
	})

	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return v.fail(err)
		}
		v.apply(func() {
			if index >= 0 && index < len(v.messages) {
				v.messages[index].Content += chunk
			}
		})
	}
}

// fail records a failed request unless the view has been closed.
func (v *View) fail(err error) error {
	if v.life.Closed() {
		return err
	}
	log.Debug().Err(err).Msg("chat request failed")
	v.apply(func() {
		v.messages = append(v.messages, Message{Role: RoleAssistant, Content: ErrorReply})
	})
	return err
}

// apply runs mutate under the lock unless the view is closed.
func (v *View) apply(mutate func()) {
	v.mu.Lock()
	if v.life.Closed() {
		v.mu.Unlock()
		return
	}
	mutate()
	v.mu.Unlock()
	v.observers.Notify()
}

// Close discards any result still in flight.
func (v *View) Close() {
	if v.life.Close() {
		log.Debug().Msg("chat view closed")
	}
}
