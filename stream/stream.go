// Package stream connects to a QWebChannel host over a byte stream such as a
// TCP socket or a process pipe. Messages are separated by newlines.
package stream

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/webchannel/internal/channel"
	"github.com/luciancaetano/webchannel/internal/protocol"
	"github.com/luciancaetano/webchannel/internal/session"
	"github.com/luciancaetano/webchannel/internal/stream"
)

type Session = session.Session
type Channel = channel.Channel
type Object = channel.Object
type Connection = channel.Connection
type SignalFunc = channel.SignalFunc
type ResponseFunc = channel.ResponseFunc
type Option = session.Option

// Dial connects to address on network ("tcp", "unix", ...) and starts the
// handshake.
func Dial(ctx context.Context, network, address string, opts ...Option) (*Session, error) {
	conn, err := stream.Dial(ctx, network, address, session.Logger(opts...))
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, conn, opts...)
}

// Open starts a session over an established stream. The session owns rwc and
// closes it when done.
func Open(ctx context.Context, rwc io.ReadWriteCloser, opts ...Option) (*Session, error) {
	conn := stream.New(rwc, protocol.DefaultDelimiter, session.Logger(opts...))
	return session.Open(ctx, conn, opts...)
}

// WithLogger sets the logger used by the channel, the session and the stream.
func WithLogger(logger zerolog.Logger) Option {
	return session.WithLogger(logger)
}

// WithReadyFunc sets a function called once the published objects are available.
func WithReadyFunc(fn func(*Channel)) Option {
	return session.WithReadyFunc(fn)
}
