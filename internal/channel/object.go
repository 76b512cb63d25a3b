package channel

import (
	"context"
	"fmt"

	"github.com/luciancaetano/webchannel/internal/protocol"
)

// Object is the local proxy for one remote object.
//
// Members are looked up by name at call time from the manifest the object was
// built from. All state is guarded by the owning channel's lock; no callback
// runs while it is held.
type Object struct {
	id      string
	channel *Channel

	methods       map[string]int
	methodOrder   []string
	properties    map[string]int
	propertyOrder []string
	cache         map[int]any
	signals       map[string]*signalInfo
	signalsByIdx  map[int]*signalInfo
	signalOrder   []string
	enums         map[string]map[string]int

	subs     map[int][]subscription
	hooks    []subscription
	nextConn uint64

	destroyed bool
}

func newObject(c *Channel, id string) *Object {
	return &Object{
		id:           id,
		channel:      c,
		methods:      make(map[string]int),
		properties:   make(map[string]int),
		cache:        make(map[int]any),
		signals:      make(map[string]*signalInfo),
		signalsByIdx: make(map[int]*signalInfo),
		enums:        make(map[string]map[string]int),
		subs:         make(map[int][]subscription),
	}
}

// ID returns the identity the remote side uses for this object.
func (o *Object) ID() string {
	return o.id
}

// Destroyed reports whether the remote object has been destroyed. A destroyed
// object has no members and rejects every call.
func (o *Object) Destroyed() bool {
	o.channel.mu.Lock()
	defer o.channel.mu.Unlock()
	return o.destroyed
}

// Methods returns method names in manifest order.
func (o *Object) Methods() []string {
	o.channel.mu.Lock()
	defer o.channel.mu.Unlock()
	return append([]string(nil), o.methodOrder...)
}

// Properties returns property names in manifest order.
func (o *Object) Properties() []string {
	o.channel.mu.Lock()
	defer o.channel.mu.Unlock()
	return append([]string(nil), o.propertyOrder...)
}

// Signals returns signal names, notify signals included, in manifest order.
func (o *Object) Signals() []string {
	o.channel.mu.Lock()
	defer o.channel.mu.Unlock()
	return append([]string(nil), o.signalOrder...)
}

// Enums returns a copy of every enum table.
func (o *Object) Enums() map[string]map[string]int {
	o.channel.mu.Lock()
	defer o.channel.mu.Unlock()
	out := make(map[string]map[string]int, len(o.enums))
	for name, values := range o.enums {
		out[name] = copyEnum(values)
	}
	return out
}

// Enum returns a copy of the named enum's key to value table.
func (o *Object) Enum(name string) (map[string]int, bool) {
	o.channel.mu.Lock()
	defer o.channel.mu.Unlock()
	values, ok := o.enums[name]
	if !ok {
		return nil, false
	}
	return copyEnum(values), true
}

func copyEnum(values map[string]int) map[string]int {
	out := make(map[string]int, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// Invoke calls a remote method. If the last argument is a func(any) or a
// ResponseFunc it receives the result, with object references resolved, once
// the response arrives; all other arguments are sent positionally and proxies
// among them are sent as references.
//
// Invoke returns as soon as the request is handed to the transport.
func (o *Object) Invoke(method string, args ...any) error {
	var fn ResponseFunc
	if n := len(args); n > 0 {
		switch cb := args[n-1].(type) {
		case ResponseFunc:
			fn, args = cb, args[:n-1]
		case func(any):
			fn, args = cb, args[:n-1]
		}
	}
	return o.invoke(method, args, fn)
}

// Call invokes a remote method and waits for its result.
//
// If ctx ends first Call returns ctx.Err(); the call itself stays pending on
// the channel until the remote side answers.
func (o *Object) Call(ctx context.Context, method string, args ...any) (any, error) {
	results := make(chan any, 1)
	if err := o.invoke(method, args, func(result any) { results <- result }); err != nil {
		return nil, err
	}
	select {
	case result := <-results:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Object) invoke(method string, args []any, fn ResponseFunc) error {
	c := o.channel
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.destroyed {
		return c.misuse(fmt.Errorf("%w: %s", ErrObjectDestroyed, o.id))
	}
	index, ok := o.methods[method]
	if !ok {
		return c.misuse(fmt.Errorf("%w: %s.%s", ErrUnknownMethod, o.id, method))
	}

	wrapped := make([]any, len(args))
	for i, arg := range args {
		wrapped[i] = c.wrap(arg)
	}
	msg, err := protocol.NewInvokeMethod(o.id, index, wrapped)
	if err != nil {
		return err
	}

	return c.exec(c.ctx, msg, func(data any) {
		c.mu.Lock()
		result := c.unwrap(data)
		c.mu.Unlock()
		if fn != nil {
			fn(result)
		}
	})
}

// Property returns the cached value of the named property. Object references
// in the value are live proxies.
func (o *Object) Property(name string) (any, bool) {
	c := o.channel
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.destroyed {
		return nil, false
	}
	index, ok := o.properties[name]
	if !ok {
		return nil, false
	}
	value := o.cache[index]
	if value == nil {
		c.logger.Warn().Str("object", o.id).Str("property", name).Msg("undefined value in property cache")
	}
	return value, true
}

// SetProperty writes a property on the remote object and updates the local
// cache once the message is sent. nil values are rejected.
func (o *Object) SetProperty(name string, value any) error {
	c := o.channel
	if value == nil {
		return c.misuse(fmt.Errorf("%w: %s.%s", ErrNilPropertyValue, o.id, name))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if o.destroyed {
		return c.misuse(fmt.Errorf("%w: %s", ErrObjectDestroyed, o.id))
	}
	index, ok := o.properties[name]
	if !ok {
		return c.misuse(fmt.Errorf("%w: %s.%s", ErrUnknownProperty, o.id, name))
	}

	msg, err := protocol.NewSetProperty(o.id, index, c.wrap(value))
	if err != nil {
		return err
	}
	if err := c.send(c.ctx, msg); err != nil {
		return err
	}
	o.cache[index] = value
	return nil
}

// unwrapProperties resolves object references in every cached value.
// c.mu must be held.
func (o *Object) unwrapProperties() {
	for index, value := range o.cache {
		o.cache[index] = o.channel.unwrap(value)
	}
}

// clear turns o into an inert placeholder. c.mu must be held.
func (o *Object) clear() {
	o.destroyed = true
	o.methods = make(map[string]int)
	o.methodOrder = nil
	o.properties = make(map[string]int)
	o.propertyOrder = nil
	o.cache = make(map[int]any)
	o.signals = make(map[string]*signalInfo)
	o.signalsByIdx = make(map[int]*signalInfo)
	o.signalOrder = nil
	o.enums = make(map[string]map[string]int)
	o.subs = make(map[int][]subscription)
	o.hooks = nil
}
