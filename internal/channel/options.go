package channel

import "github.com/rs/zerolog"

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// WithReadyFunc sets a function called once the handshake completes, before the
// idle acknowledgement is sent. It runs on the goroutine delivering inbound
// messages: a blocking Object.Call made from it never completes, so use Invoke
// with a continuation there.
func WithReadyFunc(fn func(*Channel)) Option {
	return func(c *Channel) { c.onReady = fn }
}
