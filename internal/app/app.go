// Package app wires the client-side layers of aidev together.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/realtime"
	"github.com/brianly1003/aidev/internal/session"
	"github.com/brianly1003/aidev/internal/telemetry"
)

// shutdownTimeout bounds the telemetry flush on Close.
const shutdownTimeout = 5 * time.Second

// App owns the API client, the session store and the realtime connection
// for one process.
type App struct {
	cfg     *config.Config
	version string

	// Instance info
	instanceID string
	startTime  time.Time

	// Core components
	telemetry *telemetry.Providers
	store     *session.Store
	client    *api.Client
	realtime  *realtime.Client

	// Lifecycle
	mu        sync.Mutex
	eventLog  *realtime.Subscription
	watching  bool
	watchStop context.CancelFunc
	closed    bool
}

// New builds the application from cfg and restores any saved session.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	tel, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	storage, err := session.OpenStorage(cfg.Session)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	a := &App{
		cfg:        cfg,
		version:    version,
		instanceID: uuid.New().String(),
		startTime:  time.Now(),
		telemetry:  tel,
	}

	// The store authenticates through the client and the client reads its
	// token from the store.
	a.store = session.NewStore(storage, session.AuthenticatorFunc(a.authenticate))
	a.client = api.NewFromConfig(cfg.API, a.store, tel)
	a.realtime = realtime.New(realtime.OptionsFromConfig(cfg.Realtime), a.store)

	a.eventLog = a.realtime.SubscribeAll(func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("realtime event")
	})

	if err := a.store.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore saved session")
	}

	log.Debug().
		Str("instance", a.instanceID).
		Str("api", cfg.API.BaseURL).
		Str("session_backend", cfg.Session.Backend).
		Str("state", a.store.State().String()).
		Msg("application initialized")

	return a, nil
}

func (a *App) authenticate(ctx context.Context, username, password string) (string, error) {
	tok, err := a.client.Login(ctx, username, password)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Version returns the build version.
func (a *App) Version() string {
	return a.version
}

// InstanceID identifies this process in logs.
func (a *App) InstanceID() string {
	return a.instanceID
}

// UptimeSeconds returns how long the application has been running.
func (a *App) UptimeSeconds() int64 {
	return int64(time.Since(a.startTime).Seconds())
}

// Client returns the backend HTTP client.
func (a *App) Client() *api.Client {
	return a.client
}

// Store returns the session store.
func (a *App) Store() *session.Store {
	return a.store
}

// Realtime returns the realtime client. It is not connected until
// ConnectRealtime is called.
func (a *App) Realtime() *realtime.Client {
	return a.realtime
}

// RequireSession returns domain.ErrNoSession unless a user is logged in.
func (a *App) RequireSession() (session.Session, error) {
	current, ok := a.store.Current()
	if !ok {
		return session.Session{}, domain.ErrNoSession
	}
	return current, nil
}

// WatchSession follows logins and logouts made by other aidev processes
// until ctx is cancelled or the application closes.
func (a *App) WatchSession(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return domain.ErrAlreadyClosed
	}
	if a.watching {
		a.mu.Unlock()
		return nil
	}
	watchCtx, cancel := context.WithCancel(ctx)
	a.watching = true
	a.watchStop = cancel
	a.mu.Unlock()

	if err := a.store.Watch(watchCtx); err != nil {
		cancel()
		a.mu.Lock()
		a.watching = false
		a.watchStop = nil
		a.mu.Unlock()
		return fmt.Errorf("failed to watch session: %w", err)
	}
	return nil
}

// ConnectRealtime opens the realtime connection with the current session.
func (a *App) ConnectRealtime(ctx context.Context) error {
	if _, err := a.RequireSession(); err != nil {
		return err
	}
	if err := a.realtime.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect realtime: %w", err)
	}
	return nil
}

// Close shuts everything down. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stop := a.watchStop
	a.watchStop = nil
	a.mu.Unlock()

	log.Debug().Int64("uptime_seconds", a.UptimeSeconds()).Msg("shutting down")

	if stop != nil {
		stop()
	}

	var errs []error

	a.eventLog.Unsubscribe()
	if err := a.realtime.Dispose(); err != nil {
		errs = append(errs, fmt.Errorf("realtime: %w", err))
	}

	if err := a.store.Dispose(); err != nil {
		errs = append(errs, fmt.Errorf("session storage: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
