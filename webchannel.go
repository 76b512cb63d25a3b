package webchannel

import "context"

// Transport is the outbound half of a message-oriented connection to the
// remote host.
//
// Each call to Send carries exactly one complete JSON message. Implementations
// must preserve call order and must not call back into the channel that owns
// them, since the channel may hold its lock while sending.
//
// Inbound delivery is not part of this interface: whoever owns the connection
// feeds received messages to the channel one at a time, in arrival order.
//
// Example:
//
//	type stdoutTransport struct{}
//
//	func (stdoutTransport) Send(ctx context.Context, data []byte) error {
//	    _, err := fmt.Println(string(data))
//	    return err
//	}
type Transport interface {
	// Send transmits one encoded message.
	//
	// Returns an error if the connection is closed or the context is cancelled
	// before the message could be queued.
	Send(ctx context.Context, data []byte) error
}

// Receiver is a connection that delivers inbound messages to a handler.
//
// Run blocks, calling handler once per message in arrival order, until the
// connection closes. A clean remote close returns nil.
type Receiver interface {
	Run(handler func(data []byte)) error
}

// Conn is a full duplex connection usable by a session.
type Conn interface {
	Transport
	Receiver

	// Close closes the connection. Run returns shortly after.
	Close(ctx context.Context) error
}
