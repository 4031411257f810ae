package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/domain"
)

// Store owns the authentication state. It is safe for concurrent use and
// implements ports.TokenSource.
type Store struct {
	storage Storage
	auth    Authenticator

	mu       sync.RWMutex
	state    State
	current  Session
	attempt  uint64 // bumped by every Login and Logout
	disposed bool

	listenerMu sync.Mutex
	listeners  []listenerEntry
	nextID     int

	watchCancel context.CancelFunc
}

type listenerEntry struct {
	id int
	fn Listener
}

// NewStore creates a logged-out store. Call Init to rehydrate a saved
// session.
func NewStore(storage Storage, auth Authenticator) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Store{
		storage: storage,
		auth:    auth,
		state:   StateLoggedOut,
	}
}

// Init restores a previously saved session. A saved session is trusted as
// is; the server rejects it on first use if it has expired.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	saved, ok, err := s.load()
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Msg("no saved session")
		return nil
	}

	s.mu.Lock()
	if s.state == StateLoggingIn {
		s.mu.Unlock()
		return nil
	}
	s.current = saved
	s.state = StateLoggedIn
	s.mu.Unlock()

	log.Debug().Str("user", saved.Username).Msg("restored saved session")
	s.notify(StateLoggedIn, saved)
	return nil
}

// load reads the session keys from storage.
func (s *Store) load() (Session, bool, error) {
	rawUser, hasUser, err := s.storage.Get(KeyUser)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to read saved user: %w", err)
	}
	token, hasToken, err := s.storage.Get(KeyToken)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to read saved token: %w", err)
	}
	if !hasUser {
		return Session{}, false, nil
	}

	saved, err := decodeUser(rawUser)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable saved session")
		return Session{}, false, nil
	}
	if hasToken {
		saved.Token = token
	}
	if !saved.Valid() {
		return Session{}, false, nil
	}
	return saved, true, nil
}

// Login authenticates and, on success, persists the session and moves to
// LoggedIn. On failure the store returns to the state it was in before the
// call, saved session included, and the error is returned. A Login while
// another is in flight fails with domain.ErrLoginInProgress. A Logout
// during the attempt wins: the token is dropped and
// domain.ErrLoginCancelled is returned.
func (s *Store) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.NewValidationError("username", "cannot be empty")
	}
	if password == "" {
		return domain.NewValidationError("password", "cannot be empty")
	}
	if s.auth == nil {
		return errors.New("session store has no authenticator")
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return domain.ErrAlreadyClosed
	}
	if s.state == StateLoggingIn {
		s.mu.Unlock()
		return domain.ErrLoginInProgress
	}
	prevState, prevCurrent := s.state, s.current
	s.attempt++
	attempt := s.attempt
	s.state = StateLoggingIn
	s.mu.Unlock()
	s.notify(StateLoggingIn, Session{})

	token, err := s.auth.Authenticate(ctx, username, password)
	if err == nil && token == "" {
		err = errors.New("server returned an empty token")
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateLoggingIn {
		s.mu.Unlock()
		log.Debug().Str("user", username).Msg("login superseded by logout")
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		return domain.ErrLoginCancelled
	}

	if err != nil {
		s.state = prevState
		s.current = prevCurrent
		s.mu.Unlock()
		s.notify(prevState, prevCurrent)

		log.Debug().Err(err).Str("user", username).Msg("login failed")
		return fmt.Errorf("login failed: %w", err)
	}

	next := Session{Username: username, Token: token}
	if err := s.persist(next); err != nil {
		log.Warn().Err(err).Msg("failed to persist session; it will not survive a restart")
	}
	s.state = StateLoggedIn
	s.current = next
	s.mu.Unlock()

	log.Info().Str("user", username).Msg("logged in")
	s.notify(StateLoggedIn, next)
	return nil
}

func (s *Store) persist(next Session) error {
	user, err := encodeUser(next)
	if err != nil {
		return err
	}
	if err := s.storage.Set(KeyUser, user); err != nil {
		return err
	}
	return s.storage.Set(KeyToken, next.Token)
}

// Logout clears the saved session and moves to LoggedOut. It always
// succeeds, also cancelling a Login in flight; storage errors are logged.
func (s *Store) Logout() {
	s.mu.Lock()
	s.attempt++
	was := s.current.Username
	s.state = StateLoggedOut
	s.current = Session{}
	if err := s.storage.Remove(KeyUser); err != nil {
		log.Warn().Err(err).Msg("failed to remove saved user")
	}
	if err := s.storage.Remove(KeyToken); err != nil {
		log.Warn().Err(err).Msg("failed to remove saved token")
	}
	s.mu.Unlock()

	log.Info().Str("user", was).Msg("logged out")
	s.notify(StateLoggedOut, Session{})
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns a copy of the active session. ok is false unless the
// store is LoggedIn.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateLoggedIn {
		return Session{}, false
	}
	return s.current, true
}

// Token returns the bearer token, or "" when not logged in.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateLoggedIn {
		return ""
	}
	return s.current.Token
}

// Username returns the logged-in user's name, or "".
func (s *Store) Username() string {
	current, _ := s.Current()
	return current.Username
}

// OnChange registers fn for state changes and returns a function that
// removes it.
func (s *Store) OnChange(fn Listener) func() {
	s.listenerMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			defer s.listenerMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(state State, current Session) {
	s.listenerMu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(state, current)
	}
}

// Watch follows changes made to storage by other processes and reloads the
// session when they happen. Storages that cannot be watched are a no-op.
func (s *Store) Watch(ctx context.Context) error {
	w, ok := s.storage.(Watchable)
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return domain.ErrAlreadyClosed
	}
	if s.watchCancel != nil {
		s.mu.Unlock()
		return nil
	}
	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	s.mu.Unlock()

	if err := w.Watch(watchCtx, s.reload); err != nil {
		cancel()
		s.mu.Lock()
		s.watchCancel = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// reload applies the stored session after an external change.
func (s *Store) reload() {
	saved, ok, err := s.load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to reload session")
		return
	}

	s.mu.Lock()
	if s.disposed || s.state == StateLoggingIn {
		s.mu.Unlock()
		return
	}
	var next State
	if ok {
		next = StateLoggedIn
	} else {
		next = StateLoggedOut
		saved = Session{}
	}
	if next == s.state && saved == s.current {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.current = saved
	s.mu.Unlock()

	log.Info().Str("state", next.String()).Str("user", saved.Username).Msg("session changed by another process")
	s.notify(next, saved)
}

// Dispose stops watching and closes the storage. The in-memory state is
// kept so late readers still see it.
func (s *Store) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	cancel := s.watchCancel
	s.watchCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.storage.Close()
}
