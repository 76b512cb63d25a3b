// Package session runs a channel over a connection: it starts the handshake,
// feeds inbound messages to the channel and detaches it when the connection
// ends.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/webchannel"
	"github.com/luciancaetano/webchannel/internal/channel"
)

// ErrClosed is returned by WaitReady when the connection ends first.
var ErrClosed = errors.New(webchannel.ErrConnectionClosed)

type settings struct {
	logger      zerolog.Logger
	channelOpts []channel.Option
}

// Option configures a session opened with Open.
type Option func(*settings)

// WithLogger sets the logger for the channel and the session.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
		s.channelOpts = append(s.channelOpts, channel.WithLogger(logger))
	}
}

// WithReadyFunc sets a function run once the object graph is available.
func WithReadyFunc(fn func(*channel.Channel)) Option {
	return func(s *settings) {
		s.channelOpts = append(s.channelOpts, channel.WithReadyFunc(fn))
	}
}

func resolve(opts []Option) settings {
	s := settings{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Logger returns the logger opts configure, or a no-op logger.
func Logger(opts ...Option) zerolog.Logger {
	return resolve(opts).logger
}

// Session is a channel bound to a live connection. The embedded Channel gives
// access to the published objects.
type Session struct {
	*channel.Channel

	conn   webchannel.Conn
	logger zerolog.Logger
	done   chan struct{}
	err    error
}

// Open creates a channel sending through conn and starts it.
func Open(ctx context.Context, conn webchannel.Conn, opts ...Option) (*Session, error) {
	s := resolve(opts)
	return start(ctx, channel.New(conn, s.channelOpts...), conn, s.logger)
}

// Start attaches ch, which must send through conn, and starts delivering
// inbound messages to it. Start owns conn: it is closed if the handshake
// cannot be started.
func Start(ctx context.Context, ch *channel.Channel, conn webchannel.Conn) (*Session, error) {
	return start(ctx, ch, conn, zerolog.Nop())
}

func start(ctx context.Context, ch *channel.Channel, conn webchannel.Conn, logger zerolog.Logger) (*Session, error) {
	if err := ch.Attach(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("start session: %w", err)
	}

	s := &Session{
		Channel: ch,
		conn:    conn,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Session) run() {
	defer close(s.done)

	err := s.conn.Run(s.HandleMessage)
	s.Detach()

	if err != nil {
		s.logger.Warn().Err(err).Msg("session ended")
	} else {
		s.logger.Debug().Msg("session ended")
	}
	s.err = err
}

// Done is closed once the connection has ended and the channel is detached.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the connection, or nil for a clean close.
// It is only meaningful after Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// WaitReady blocks until the handshake completes, the connection ends or ctx
// is done. A completed handshake wins even if the connection has since ended.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.Ready():
		return nil
	default:
	}

	select {
	case <-s.Ready():
		return nil
	case <-s.done:
		if s.err != nil {
			return fmt.Errorf("%w: %w", ErrClosed, s.err)
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection and waits for the receive loop to finish.
func (s *Session) Close(ctx context.Context) error {
	err := s.conn.Close(ctx)
	select {
	case <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
