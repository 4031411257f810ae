// Package login is the login form view.
package login

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/session"
	"github.com/brianly1003/aidev/internal/views"
)

// User-visible error messages.
const (
	ErrMsgRejected = "Failed to log in"
	ErrMsgFailed   = "An error occurred during login"
	ErrMsgRequired = "Username and password are required"
)

// DefaultDestination is where a successful login leads when no other
// destination was requested.
const DefaultDestination = "/"

// Sessions is the part of the session store the form uses.
type Sessions interface {
	Login(ctx context.Context, username, password string) error
	State() session.State
}

// View is the login form. The password is never retained.
type View struct {
	sessions    Sessions
	destination string
	life        *views.Lifecycle
	observers   views.Observers

	mu         sync.Mutex
	username   string
	errMsg     string
	submitting bool
	done       bool
}

// New creates a login form that leads to from after success. An empty
// from means DefaultDestination.
func New(sessions Sessions, from string) *View {
	if from == "" {
		from = DefaultDestination
	}
	return &View{
		sessions:    sessions,
		destination: from,
		life:        views.NewLifecycle(),
	}
}

// OnUpdate registers fn to run after every state change.
func (v *View) OnUpdate(fn func()) func() {
	return v.observers.Add(fn)
}

// Username returns the last submitted username.
func (v *View) Username() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.username
}

// Error returns the message to show under the form, or "".
func (v *View) Error() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.errMsg
}

// Submitting reports whether a login is in flight.
func (v *View) Submitting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submitting
}

// Done reports whether the form completed a login.
func (v *View) Done() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}

// Destination returns where to go after a successful login.
func (v *View) Destination() string {
	return v.destination
}

// Submit logs in with the given credentials. The previous error is
// cleared first.
func (v *View) Submit(ctx context.Context, username, password string) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	v.apply(func() {
		v.username = username
		v.errMsg = ""
		v.submitting = true
	})
	defer v.apply(func() { v.submitting = false })

	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	err := v.sessions.Login(ctx, username, password)
	if err != nil {
		msg := Message(err)
		log.Debug().Err(err).Str("username", username).Msg("login failed")
		v.apply(func() { v.errMsg = msg })
		return err
	}
	v.apply(func() { v.done = true })
	return nil
}

// Message maps a login error to the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsValidationError(err):
		return ErrMsgRequired
	case domain.IsAuthError(err):
		return ErrMsgRejected
	case errors.Is(err, domain.ErrLoginInProgress):
		return domain.ErrLoginInProgress.Error()
	case errors.Is(err, domain.ErrLoginCancelled):
		return domain.ErrLoginCancelled.Error()
	default:
		return ErrMsgFailed
	}
}

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

// Close stops the form from reacting to an in-flight login. The login
// itself still completes in the session store if it already reached it.
func (v *View) Close() {
	v.life.Close()
}
