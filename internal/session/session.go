// Package session holds the client's authentication state. A Store moves
// between LoggedOut, LoggingIn and LoggedIn, persists the active session in
// a Storage backend and rehydrates it on start.
package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// State is the authentication state of a Store.
type State int

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateLoggedIn
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateLoggedIn:
		return "logged_in"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Storage keys.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

// Session is an authenticated user. Values are copies; changing one does
// not affect the Store.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Valid reports whether the session carries both a user and a token.
func (s Session) Valid() bool {
	return s.Username != "" && s.Token != ""
}

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, username, password string) (string, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, username, password string) (string, error) {
	return f(ctx, username, password)
}

// Listener is notified after every state change.
type Listener func(state State, current Session)

func encodeUser(s Session) (string, error) {
	data, err := json.Marshal(struct {
		Username string `json:"username"`
	}{s.Username})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeUser accepts the stored user object. Older files stored the whole
// session under the user key, so a token found there is honoured when the
// token key is missing.
func decodeUser(raw string) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode stored user: %w", err)
	}
	return s, nil
}
