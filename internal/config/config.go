// Package config loads client settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/webchannel/internal/observability"
	"github.com/luciancaetano/webchannel/internal/websocket"
)

// Transports
const (
	TransportWebSocket = "websocket"
	TransportTCP       = "tcp"
)

// ClientConfig describes how to reach a host and how to behave once connected.
type ClientConfig struct {
	Transport        string
	URL              string
	Address          string
	HandshakeTimeout time.Duration
	ReadyTimeout     time.Duration
	RateLimit        websocket.RateLimitConfig
	ReadLimit        int64
	LogLevel         string
	MetricsAddr      string
}

type fileRateLimit struct {
	MessagesPerSecond float64 `toml:"messages_per_second"`
	Burst             int     `toml:"burst"`
	Enabled           bool    `toml:"enabled"`
}

type fileConfig struct {
	Transport        string        `toml:"transport"`
	URL              string        `toml:"url"`
	Address          string        `toml:"address"`
	HandshakeTimeout string        `toml:"handshake_timeout"`
	ReadyTimeout     string        `toml:"ready_timeout"`
	RateLimit        fileRateLimit `toml:"rate_limit"`
	ReadLimit        int64         `toml:"read_limit"`
	LogLevel         string        `toml:"log_level"`
	MetricsAddr      string        `toml:"metrics_addr"`
}

// DefaultClientConfig returns a WebSocket configuration for a local host.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Transport:        TransportWebSocket,
		URL:              "ws://127.0.0.1:12345",
		HandshakeTimeout: websocket.DefaultHandshakeTimeout,
		ReadyTimeout:     10 * time.Second,
		RateLimit:        *websocket.DefaultRateLimitConfig(),
		ReadLimit:        websocket.DefaultReadLimit,
		LogLevel:         "info",
	}
}

// LoadClientConfig reads path and overlays the keys it defines on the defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}

	if meta.IsDefined("handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandshakeTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = d
	}
	if meta.IsDefined("ready_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadyTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse ready_timeout: %w", err)
		}
		cfg.ReadyTimeout = d
	}

	if meta.IsDefined("rate_limit", "messages_per_second") {
		cfg.RateLimit.MessagesPerSecond = rate.Limit(raw.RateLimit.MessagesPerSecond)
	}
	if meta.IsDefined("rate_limit", "burst") {
		cfg.RateLimit.Burst = raw.RateLimit.Burst
	}
	if meta.IsDefined("rate_limit", "enabled") {
		cfg.RateLimit.Enabled = raw.RateLimit.Enabled
	}

	if meta.IsDefined("read_limit") {
		cfg.ReadLimit = raw.ReadLimit
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c ClientConfig) Validate() error {
	switch c.Transport {
	case TransportWebSocket:
		if c.URL == "" {
			return errors.New("websocket transport requires url")
		}
	case TransportTCP:
		if c.Address == "" {
			return errors.New("tcp transport requires address")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake_timeout must not be negative: %v", c.HandshakeTimeout)
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("ready_timeout must be positive: %v", c.ReadyTimeout)
	}
	if c.RateLimit.Enabled && (c.RateLimit.MessagesPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate_limit requires positive messages_per_second and burst when enabled")
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("read_limit must not be negative: %d", c.ReadLimit)
	}
	if _, ok := observability.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// WebSocket returns the transport settings for a WebSocket connection.
func (c ClientConfig) WebSocket() *websocket.Config {
	limit := c.RateLimit
	return &websocket.Config{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		RateLimitConfig:  &limit,
		ReadLimit:        c.ReadLimit,
	}
}
