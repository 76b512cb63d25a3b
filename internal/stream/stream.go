// Package stream carries QWebChannel messages over a byte stream, one message
// per delimiter-terminated segment.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luciancaetano/webchannel"
	"github.com/luciancaetano/webchannel/internal/protocol"
)

const readBufferSize = 4096

// Conn is a delimiter-framed connection. It implements webchannel.Conn.
type Conn struct {
	id     string
	rwc    io.ReadWriteCloser
	delim  byte
	logger zerolog.Logger

	// wmu serializes writes so frames never interleave.
	wmu sync.Mutex

	mu      sync.Mutex
	closed  bool
	running bool
}

// New wraps rwc. Messages are terminated by delim on the wire.
func New(rwc io.ReadWriteCloser, delim byte, logger zerolog.Logger) *Conn {
	id := uuid.New().String()
	return &Conn{
		id:     id,
		rwc:    rwc,
		delim:  delim,
		logger: logger.With().Str("conn_id", id).Logger(),
	}
}

// Dial connects to address and frames messages with newlines.
func Dial(ctx context.Context, network, address string, logger zerolog.Logger) (*Conn, error) {
	if address == "" {
		return nil, errors.New(webchannel.ErrMissingAddress)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return New(conn, protocol.DefaultDelimiter, logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger()), nil
}

// ID returns a unique identifier for the connection
func (c *Conn) ID() string {
	return c.id
}

// Send writes one message followed by the delimiter.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New(webchannel.ErrConnectionClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if nc, ok := c.rwc.(net.Conn); ok {
		deadline, _ := ctx.Deadline()
		nc.SetWriteDeadline(deadline)
	}
	if _, err := c.rwc.Write(protocol.Frame(data, c.delim)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Run reads until the stream ends, calling handler for every non-empty
// segment in arrival order. End of stream and a local Close return nil.
func (c *Conn) Run(handler func(data []byte)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New(webchannel.ErrAlreadyRunning)
	}
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug().Msg("stream closed before receive loop started")
		return nil
	}
	c.running = true
	c.mu.Unlock()

	framer := protocol.NewFramer(c.delim)
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.rwc.Read(buf)
		if n > 0 {
			for _, segment := range framer.Feed(buf[:n]) {
				if len(segment) == 0 {
					continue
				}
				handler(segment)
			}
		}
		if err != nil {
			return c.finish(err, framer.Buffered())
		}
	}
}

func (c *Conn) finish(err error, leftover int) error {
	if leftover > 0 {
		c.logger.Debug().Int("bytes", leftover).Msg("discarding unterminated trailing data")
	}

	c.mu.Lock()
	closedLocally := c.closed
	c.mu.Unlock()

	if closedLocally || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		c.logger.Debug().Msg("stream closed")
		c.Close(context.Background())
		return nil
	}
	c.logger.Warn().Err(err).Msg("stream lost")
	c.Close(context.Background())
	return fmt.Errorf("%s: %w", webchannel.ErrConnectionClosed, err)
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if nc, ok := c.rwc.(net.Conn); ok {
		// unblock a writer stuck on a peer that stopped reading
		nc.SetWriteDeadline(time.Now())
	}
	return c.rwc.Close()
}
