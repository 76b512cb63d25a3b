package websocket

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultReadLimit caps the size of one inbound frame (10MB).
	DefaultReadLimit int64 = 10 * 1024 * 1024
	// DefaultHandshakeTimeout bounds the HTTP upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBufferSize = 256
)

// Config describes a client connection to a WebSocket endpoint.
type Config struct {
	// URL is the ws:// or wss:// endpoint to dial.
	URL string
	// Header is sent with the upgrade request.
	Header http.Header
	// HandshakeTimeout bounds the upgrade. Zero uses DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
	// RateLimitConfig throttles outbound messages. nil disables throttling.
	RateLimitConfig *RateLimitConfig
	// ReadLimit caps inbound frames. Zero uses DefaultReadLimit.
	ReadLimit int64
	// Logger receives connection lifecycle events. nil discards them.
	Logger *zerolog.Logger
}

// RateLimitConfig defines outbound rate limiting for a connection
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages may be written per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// limiter builds the token bucket for cfg, or nil when throttling is off.
func (cfg *RateLimitConfig) limiter() *rate.Limiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return rate.NewLimiter(cfg.MessagesPerSecond, cfg.Burst)
}

func (cfg *Config) readLimit() int64 {
	if cfg.ReadLimit > 0 {
		return cfg.ReadLimit
	}
	return DefaultReadLimit
}

func (cfg *Config) handshakeTimeout() time.Duration {
	if cfg.HandshakeTimeout > 0 {
		return cfg.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

func (cfg *Config) logger() zerolog.Logger {
	if cfg.Logger != nil {
		return *cfg.Logger
	}
	return zerolog.Nop()
}
