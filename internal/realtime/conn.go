package realtime

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Default timeouts for WebSocket operations.
	DefaultWriteTimeout = 15 * time.Second
	DefaultReadTimeout  = 90 * time.Second

	// Default maximum message size (512KB).
	DefaultMaxMessageSize = 512 * 1024

	// Ping interval for keepalive
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 60 * time.Second
)

// wsConn wraps one WebSocket connection with serialized writes and a
// keepalive ping loop.
type wsConn struct {
	conn *websocket.Conn

	writeTimeout time.Duration
	readTimeout  time.Duration

	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func newWSConn(conn *websocket.Conn, pingInterval time.Duration) *wsConn {
	c := &wsConn{
		conn:         conn,
		writeTimeout: DefaultWriteTimeout,
		readTimeout:  DefaultReadTimeout,
		done:         make(chan struct{}),
	}

	conn.SetReadLimit(DefaultMaxMessageSize)

	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(DefaultPongTimeout))
		return nil
	})

	if pingInterval > 0 {
		go c.pingLoop(pingInterval)
	}

	return c
}

// pingLoop sends periodic pings to keep the connection alive.
func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Read reads the next data frame. A clean close from the peer is io.EOF.
func (c *wsConn) Read() ([]byte, error) {
	select {
	case <-c.done:
		return nil, io.EOF
	default:
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write sends one text frame.
func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return io.ErrClosedPipe
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return c.conn.Close()
}

// isClosed reports whether Close has been called.
func (c *wsConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
