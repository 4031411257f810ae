// Package realtime is the WebSocket client for the backend's realtime
// channel. It keeps a single connection, publishes events to the server and
// fans received events out to subscribers through an in-process hub.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/domain/ports"
	"github.com/brianly1003/aidev/internal/hub"
)

// Options configures a Client.
type Options struct {
	URL                 string
	Reconnect           string // config.ReconnectNone or config.ReconnectBackoff
	ReconnectMaxElapsed time.Duration
	HandshakeTimeout    time.Duration
	PingInterval        time.Duration

	// InitialBackoff overrides the first reconnect delay.
	InitialBackoff time.Duration
}

// OptionsFromConfig builds Options from the realtime config section.
func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		URL:                 cfg.URL,
		Reconnect:           cfg.Reconnect,
		ReconnectMaxElapsed: cfg.ReconnectMaxElapsed(),
	}
}

// Client is the realtime connection. It is safe for concurrent use.
type Client struct {
	opts   Options
	tokens ports.TokenSource
	hub    *hub.Hub
	dialer websocket.Dialer

	// dialMu serializes dials from Connect and the reconnect loop.
	dialMu sync.Mutex

	mu         sync.Mutex
	conn       *wsConn
	closing    bool
	life       context.Context
	cancelLife context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a new Client. tokens may be nil for unauthenticated
// connections.
func New(opts Options, tokens ports.TokenSource) *Client {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Reconnect == "" {
		opts.Reconnect = config.ReconnectNone
	}

	h := hub.New()
	_ = h.Start()

	return &Client{
		opts:   opts,
		tokens: tokens,
		hub:    h,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
}

// Connect dials the server. It is a no-op when already connected. A failed
// dial is returned and also delivered to subscribers as an error event.
func (c *Client) Connect(ctx context.Context) error {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	if c.life == nil || c.life.Err() != nil {
		c.life, c.cancelLife = context.WithCancel(context.Background())
	}
	c.mu.Unlock()

	if err := c.dialAndServe(ctx); err != nil {
		c.hub.Publish(events.NewErrorEvent(err))
		return err
	}
	return nil
}

// dialAndServe opens a connection and starts its read loop. The caller
// holds dialMu.
func (c *Client) dialAndServe(ctx context.Context) error {
	header := http.Header{}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return domain.NewHTTPError("GET "+c.opts.URL, resp.StatusCode, "")
		}
		return domain.NewNetworkError("dial "+c.opts.URL, err)
	}

	conn := newWSConn(ws, c.opts.PingInterval)

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return domain.ErrAlreadyClosed
	}
	c.conn = conn
	c.wg.Add(1)
	c.mu.Unlock()

	go c.readLoop(conn)

	log.Info().Str("url", c.opts.URL).Msg("realtime connected")
	c.hub.Publish(events.NewConnectEvent(c.opts.URL))
	return nil
}

// readLoop reads frames until the connection fails and publishes each
// decoded event to the hub.
func (c *Client) readLoop(conn *wsConn) {
	defer c.wg.Done()

	for {
		data, err := conn.Read()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		event, err := events.Parse(data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed realtime frame")
			c.hub.Publish(events.NewErrorEvent(err))
			continue
		}
		c.hub.Publish(event)
	}
}

func (c *Client) handleDisconnect(conn *wsConn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	manual := c.closing || conn.isClosed()
	life := c.life
	c.mu.Unlock()

	_ = conn.Close()

	if manual {
		log.Info().Msg("realtime connection closed")
		c.hub.Publish(events.NewDisconnectEvent("closed", false))
		return
	}

	log.Warn().Err(err).Msg("realtime connection lost")
	c.hub.Publish(events.NewDisconnectEvent(err.Error(), true))

	if c.opts.Reconnect == config.ReconnectBackoff && life != nil {
		c.wg.Add(1)
		go c.reconnectLoop(life)
	}
}

// reconnectLoop redials with exponential backoff until it succeeds, the
// elapsed limit is reached, or Close is called.
func (c *Client) reconnectLoop(life context.Context) {
	defer c.wg.Done()

	b := backoff.NewExponentialBackOff()
	if c.opts.InitialBackoff > 0 {
		b.InitialInterval = c.opts.InitialBackoff
	}
	b.MaxElapsedTime = c.opts.ReconnectMaxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		c.dialMu.Lock()
		defer c.dialMu.Unlock()

		c.mu.Lock()
		closing, connected := c.closing, c.conn != nil
		c.mu.Unlock()
		if closing {
			return backoff.Permanent(domain.ErrAlreadyClosed)
		}
		if connected {
			// Connect won the race.
			return nil
		}

		ctx, cancel := context.WithTimeout(life, c.opts.HandshakeTimeout)
		defer cancel()
		return c.dialAndServe(ctx)
	}

	notify := func(err error, next time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("realtime reconnect failed")
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, life), notify)
	if err == nil {
		log.Info().Int("attempts", attempt).Msg("realtime reconnected")
		return
	}
	if errors.Is(err, domain.ErrAlreadyClosed) || errors.Is(err, context.Canceled) {
		return
	}
	c.hub.Publish(events.NewErrorEvent(fmt.Errorf("realtime reconnect gave up after %d attempts: %w", attempt, err)))
}

// Close closes the connection and stops any reconnect attempt. Subsequent
// Publish calls return domain.ErrNotConnected until Connect is called
// again.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.conn = nil
	if c.cancelLife != nil {
		c.cancelLife()
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Dispose closes the connection, waits for background goroutines and stops
// event delivery. The client cannot be used afterwards.
func (c *Client) Dispose() error {
	err := c.Close()
	c.wg.Wait()
	_ = c.hub.Stop()
	return err
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Publish sends one event with the given name and payload. There is no
// acknowledgement.
func (c *Client) Publish(ctx context.Context, eventType events.EventType, payload interface{}) error {
	return c.PublishEvent(ctx, events.NewEvent(eventType, payload))
}

// PublishEvent sends a prepared event.
func (c *Client) PublishEvent(ctx context.Context, event *events.BaseEvent) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return domain.ErrNotConnected
	}

	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type(), err)
	}
	if err := conn.Write(ctx, data); err != nil {
		return domain.NewNetworkError("publish "+string(event.Type()), err)
	}
	return nil
}
