package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/webchannel"
)

// Client is one WebSocket connection carrying QWebChannel messages as text
// frames. It implements webchannel.Conn.
type Client struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	mu          sync.RWMutex
	closed      bool
	running     bool
	rateLimiter *rate.Limiter // Rate limiter for outgoing messages
	logger      zerolog.Logger
}

// Dial opens a WebSocket connection to cfg.URL.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New(webchannel.ErrMissingAddress)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.handshakeTimeout(),
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", cfg.URL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	return NewClient(conn, cfg), nil
}

// NewClient wraps an established connection. Nothing is read or written until
// Run is called; up to 256 messages sent before that are buffered.
func NewClient(conn *websocket.Conn, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	id := uuid.New().String()
	remoteAddr := conn.RemoteAddr().String()
	conn.SetReadLimit(cfg.readLimit())

	return &Client{
		id:          id,
		conn:        conn,
		remoteAddr:  remoteAddr,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, sendBufferSize),
		rateLimiter: cfg.RateLimitConfig.limiter(),
		logger: cfg.logger().With().
			Str("conn_id", id).
			Str("remote_addr", remoteAddr).
			Logger(),
	}
}

// ID returns a unique identifier for the connection
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the peer's network address
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Send queues one message for writing
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New(webchannel.ErrConnectionClosed)
	}

	// Keep the lock while sending to prevent race with Close()
	select {
	case c.sendCh <- data:
		c.mu.RUnlock()
		return nil
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	case <-c.ctx.Done():
		c.mu.RUnlock()
		return errors.New(webchannel.ErrContextCancelled)
	}
}

// Run pumps the connection until it closes, calling handler for every inbound
// message in arrival order. It returns nil when the connection was closed
// locally or the peer closed it normally.
func (c *Client) Run(handler func(data []byte)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New(webchannel.ErrAlreadyRunning)
	}
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug().Msg("connection closed before receive loop started")
		return nil
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Debug().Msg("connection started")

	// The write pump only watches ctx, so a clean end of the read side must
	// stop it explicitly.
	runCtx, stop := context.WithCancel(c.ctx)
	defer stop()
	g, ctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return c.writePump(ctx) })
	g.Go(func() error {
		defer stop()
		return c.readPump(ctx, handler)
	})
	err := g.Wait()

	c.Close(context.Background())
	if err != nil {
		c.logger.Warn().Err(err).Msg("connection lost")
		return err
	}
	c.logger.Debug().Msg("connection closed")
	return nil
}

// Close closes the connection
func (c *Client) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and optional reason
func (c *Client) CloseWithCode(ctx context.Context, code int, reason string) error {
	// Cancel first so that a Send blocked on a full buffer releases its lock.
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	// Send close message
	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.WriteControl(websocket.CloseMessage, message, deadline)

	close(c.sendCh)
	return c.conn.Close()
}

// IsAlive returns true if the connection is still active
func (c *Client) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// readPump delivers inbound frames to handler until the connection fails.
func (c *Client) readPump(ctx context.Context, handler func([]byte)) error {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%s: %w", webchannel.ErrConnectionClosed, err)
		}

		// Reset read deadline after successful read
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handler(data)
	}
}

// writePump pumps messages from the send channel to the websocket connection
func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			if !ok {
				// Channel closed by Close, which already sent the close frame
				return nil
			}

			if c.rateLimiter != nil {
				if err := c.rateLimiter.Wait(ctx); err != nil {
					return nil
				}
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return fmt.Errorf("write: %w", err)
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}
