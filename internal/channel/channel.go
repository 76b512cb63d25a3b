// Package channel implements the QWebChannel client engine.
//
// A Channel owns the object registry, the table of pending calls and the
// connection state machine:
//
//	Disconnected → Handshaking → Ready
//	     ↑______________|__________|
//
// Attach moves to Handshaking and sends init. The init response builds one
// proxy per published object, resolves cross references between them, moves
// to Ready, runs the ready function and acknowledges with idle. Detach moves
// back to Disconnected. Signal and property update messages are only processed
// while Ready; responses are always processed.
package channel

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/webchannel"
	"github.com/luciancaetano/webchannel/internal/observability"
	"github.com/luciancaetano/webchannel/internal/protocol"
)

// State is the connection state of a Channel.
type State int

const (
	// StateDisconnected is the initial state and the state after the transport closes.
	StateDisconnected State = iota
	// StateHandshaking means init was sent and its response is outstanding.
	StateHandshaking
	// StateReady means the object graph is built and notifications are processed.
	StateReady
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateHandshaking:
		return "Handshaking"
	case StateReady:
		return "Ready"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Channel is the client side of one QWebChannel connection.
type Channel struct {
	mu sync.Mutex

	transport webchannel.Transport
	logger    zerolog.Logger
	onReady   func(*Channel)

	// ctx is used for sends not tied to a caller's context. It keeps the values
	// of the context given to Attach but not its cancellation.
	ctx     context.Context
	state   State
	readyCh chan struct{}
	calls   *correlator
	objects *registry
}

// New creates a disconnected channel sending through transport.
func New(transport webchannel.Transport, opts ...Option) *Channel {
	c := &Channel{
		transport: transport,
		logger:    zerolog.Nop(),
		ctx:       context.Background(),
		readyCh:   make(chan struct{}),
		calls:     newCorrelator(),
		objects:   newRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready returns a channel closed when the current handshake completes.
func (c *Channel) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyCh
}

// PendingCalls returns the number of calls waiting for a response.
func (c *Channel) PendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls.len()
}

// Object returns the live proxy for id.
func (c *Channel) Object(id string) (*Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objects.get(id)
}

// Objects returns every live proxy ordered by identity.
func (c *Channel) Objects() []*Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objects.all()
}

// Attach starts the handshake by sending init. It fails unless the channel is
// disconnected. Objects left over from an earlier connection are destroyed.
func (c *Channel) Attach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return fmt.Errorf("%w: state %s", ErrAlreadyAttached, c.state)
	}

	for _, obj := range c.objects.drain() {
		obj.clear()
	}
	select {
	case <-c.readyCh:
		c.readyCh = make(chan struct{})
	default:
	}

	c.ctx = context.WithoutCancel(ctx)
	c.state = StateHandshaking
	if err := c.exec(ctx, protocol.NewInit(), c.handleInit); err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("start handshake: %w", err)
	}
	c.logger.Debug().Msg("handshake started")
	return nil
}

// Detach moves the channel to Disconnected. Pending calls stay pending.
func (c *Channel) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return
	}
	c.logger.Info().
		Str("from", c.state.String()).
		Int("pending_calls", c.calls.len()).
		Msg("channel disconnected")
	c.state = StateDisconnected
}

// Debug sends a diagnostic message to the remote side.
func (c *Channel) Debug(data any) error {
	msg, err := protocol.NewDebug(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(c.ctx, msg)
}

// HandleMessage processes one inbound message. Messages must be handed over
// one at a time in arrival order. Malformed or unexpected messages are logged
// and dropped.
func (c *Channel) HandleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.violation("decode").Err(err).Msg("invalid message received")
		return
	}
	observability.RecordMessage(observability.DirectionIn, msg.Type.String())

	switch msg.Type {
	case webchannel.MessageResponse:
		c.handleResponse(msg)
	case webchannel.MessageSignal:
		c.handleSignal(msg)
	case webchannel.MessagePropertyUpdate:
		c.handlePropertyUpdate(msg)
	default:
		c.violation("type").Int("type", int(msg.Type)).Msg(webchannel.ErrUnknownMessageType)
	}
}

func (c *Channel) handleResponse(msg *protocol.Message) {
	if msg.ID == nil {
		c.violation("response_id").Msg("response without id")
		return
	}

	c.mu.Lock()
	fn, ok := c.calls.take(*msg.ID)
	c.mu.Unlock()
	if !ok {
		c.violation("unknown_response").Err(ErrUnknownResponse).Int("id", *msg.ID).Msg("unmatched response")
		return
	}
	observability.AddPendingCalls(-1)

	var data any
	if err := msg.DecodeData(&data); err != nil {
		c.violation("response_data").Err(err).Int("id", *msg.ID).Msg("undecodable response data")
		data = nil
	}
	fn(data)
}

func (c *Channel) handleInit(data any) {
	c.mu.Lock()
	if c.state != StateHandshaking {
		c.mu.Unlock()
		c.logger.Debug().Msg("init response after detach ignored")
		return
	}

	manifests, ok := data.(map[string]any)
	if !ok && data != nil {
		c.violation("init_payload").Msgf("init response data is %T, not an object", data)
	}
	ids := make([]string, 0, len(manifests))
	for id := range manifests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		manifest, err := protocol.ParseManifest(manifests[id])
		if err != nil {
			c.violation("invalid_manifest").Err(err).Str("object", id).Msg("skipping object")
			continue
		}
		if _, err := c.instantiate(id, manifest); err != nil {
			c.violation("instantiate").Err(err).Str("object", id).Msg("skipping object")
		}
	}

	// Properties may reference any object of the batch, so they are resolved
	// only once the whole batch is registered.
	for _, obj := range c.objects.all() {
		obj.unwrapProperties()
	}

	c.state = StateReady
	readyCh := c.readyCh
	onReady := c.onReady
	count := c.objects.len()
	c.mu.Unlock()

	close(readyCh)
	c.logger.Info().Int("objects", count).Msg("channel ready")
	if onReady != nil {
		onReady(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	if err := c.send(c.ctx, protocol.NewIdle()); err != nil {
		c.logger.Warn().Err(err).Msg("idle acknowledgement failed")
	}
}

func (c *Channel) handleSignal(msg *protocol.Message) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		c.logger.Debug().Str("object", msg.Object).Msg("signal dropped before ready")
		return
	}

	obj, ok := c.objects.get(msg.Object)
	if !ok {
		c.mu.Unlock()
		c.violation("unknown_object").Err(ErrUnknownObject).Str("object", msg.Object).Msg("unhandled signal")
		return
	}
	if msg.Signal == nil {
		c.mu.Unlock()
		c.violation("signal_index").Str("object", msg.Object).Msg("signal without index")
		return
	}
	index := *msg.Signal

	args, err := msg.DecodeArgs()
	if err != nil {
		c.mu.Unlock()
		c.violation("signal_args").Err(err).Str("object", msg.Object).Int("signal", index).Msg("undecodable signal arguments")
		return
	}
	args = c.unwrap(args).([]any)

	var callbacks []func()
	switch {
	case obj.isDestroyedSignal(index):
		callbacks = obj.destroyCallbacks(args)
		c.objects.removeIf(obj)
		obj.clear()
		c.logger.Debug().Str("object", obj.id).Msg("object destroyed")
	case obj.signalsByIdx[index] != nil && obj.signalsByIdx[index].notify:
		c.logger.Debug().Str("object", obj.id).Int("signal", index).Msg("notify signal outside property update ignored")
	default:
		callbacks = obj.subscribers(strconv.Itoa(index), args)
	}
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (c *Channel) handlePropertyUpdate(msg *protocol.Message) {
	if c.State() != StateReady {
		c.logger.Debug().Msg("property update dropped before ready")
		return
	}

	updates, err := protocol.DecodePropertyUpdates(msg)
	if err != nil {
		c.violation("property_update").Err(err).Msg("undecodable property update")
		return
	}

	for _, update := range updates {
		c.mu.Lock()
		if c.state != StateReady {
			c.mu.Unlock()
			return
		}
		obj, ok := c.objects.get(update.Object)
		if !ok {
			c.mu.Unlock()
			c.violation("unknown_object").Err(ErrUnknownObject).Str("object", update.Object).Msg("unhandled property update")
			continue
		}
		callbacks := obj.applyUpdate(update)
		c.mu.Unlock()

		for _, fn := range callbacks {
			fn()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	if err := c.send(c.ctx, protocol.NewIdle()); err != nil {
		c.logger.Warn().Err(err).Msg("idle acknowledgement failed")
	}
}

// send encodes and transmits msg. c.mu must be held.
func (c *Channel) send(ctx context.Context, msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, data); err != nil {
		c.logger.Warn().Err(err).Str("type", msg.Type.String()).Msg("send failed")
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	observability.RecordMessage(observability.DirectionOut, msg.Type.String())
	return nil
}

// exec sends msg, first registering fn for its response when fn is non-nil.
// If the transport rejects the message the registration is dropped.
// c.mu must be held.
func (c *Channel) exec(ctx context.Context, msg *protocol.Message, fn ResponseFunc) error {
	if fn == nil {
		return c.send(ctx, msg)
	}

	id, err := c.calls.assign(msg, fn)
	if err != nil {
		return c.misuse(err)
	}
	observability.AddPendingCalls(1)

	if err := c.send(ctx, msg); err != nil {
		c.calls.take(id)
		observability.AddPendingCalls(-1)
		return err
	}
	return nil
}

func (c *Channel) violation(kind string) *zerolog.Event {
	observability.RecordViolation(kind)
	return c.logger.Warn().Str("violation", kind)
}

func (c *Channel) misuse(err error) error {
	c.logger.Warn().Err(err).Msg("call rejected")
	return err
}
