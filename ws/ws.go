// Package ws connects to a QWebChannel host over WebSocket.
package ws

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/webchannel/internal/channel"
	"github.com/luciancaetano/webchannel/internal/session"
	"github.com/luciancaetano/webchannel/internal/websocket"
)

type Config = websocket.Config
type RateLimitConfig = websocket.RateLimitConfig
type Session = session.Session
type Channel = channel.Channel
type Object = channel.Object
type Connection = channel.Connection
type SignalFunc = channel.SignalFunc
type ResponseFunc = channel.ResponseFunc
type Option = session.Option

// Dial connects to the host described by cfg and starts the handshake. Use
// Session.WaitReady to wait for the published objects.
//
// Example:
//
//	s, err := ws.Dial(ctx, ws.NewConfig("ws://localhost:12345", nil))
//	if err != nil {
//	    return err
//	}
//	defer s.Close(ctx)
//	if err := s.WaitReady(ctx); err != nil {
//	    return err
//	}
//	core, _ := s.Object("core")
//	core.Connect("sendText", func(args ...any) { fmt.Println(args...) })
func Dial(ctx context.Context, cfg *Config, opts ...Option) (*Session, error) {
	if cfg != nil && cfg.Logger == nil {
		logger := session.Logger(opts...)
		withLogger := *cfg
		withLogger.Logger = &logger
		cfg = &withLogger
	}

	client, err := websocket.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, client, opts...)
}

// NewConfig returns a configuration for url. header may be nil.
func NewConfig(url string, header http.Header) *Config {
	return &websocket.Config{
		URL:    url,
		Header: header,
	}
}

// WithLogger sets the logger used by the channel, the session and, unless the
// config names its own, the connection.
func WithLogger(logger zerolog.Logger) Option {
	return session.WithLogger(logger)
}

// WithReadyFunc sets a function called once the published objects are available.
func WithReadyFunc(fn func(*Channel)) Option {
	return session.WithReadyFunc(fn)
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
