package channel

import (
	"fmt"
	"strconv"

	"github.com/luciancaetano/webchannel"
	"github.com/luciancaetano/webchannel/internal/protocol"
)

// hookSignal keys OnDestroyed hooks, which are not tied to a declared signal.
const hookSignal = -1

// SignalFunc receives the arguments of a signal emission. It runs on the
// goroutine delivering inbound messages, so it must not block on Object.Call;
// use Invoke with a continuation instead.
type SignalFunc func(args ...any)

// Connection identifies one subscription made with Object.Connect or
// Object.OnDestroyed. It is only valid on the object that issued it. The zero
// value identifies nothing.
type Connection struct {
	obj    *Object
	signal int
	id     uint64
}

// Signal returns the index of the subscribed signal, or -1 for a destroyed hook.
func (c Connection) Signal() int {
	return c.signal
}

type signalInfo struct {
	name   string
	index  int
	notify bool
}

// remote reports whether subscriptions to the signal are announced to the
// remote side. Notify signals arrive through property updates and destroyed
// is always delivered.
func (s *signalInfo) remote() bool {
	return !s.notify && s.name != webchannel.DestroyedSignal
}

type subscription struct {
	id uint64
	fn SignalFunc
}

// addSignal declares a signal. An index already declared as a notify signal
// stays one.
func (o *Object) addSignal(name string, index int, notify bool) {
	info, ok := o.signalsByIdx[index]
	if !ok {
		info = &signalInfo{name: name, index: index, notify: notify}
		o.signalsByIdx[index] = info
	} else if notify {
		info.notify = true
	}
	if _, named := o.signals[name]; !named {
		o.signalOrder = append(o.signalOrder, name)
	}
	o.signals[name] = info
}

// Connect subscribes fn to the named signal. The first subscription to a plain
// signal sends connectToSignal; further ones are local only.
func (o *Object) Connect(signal string, fn SignalFunc) (Connection, error) {
	c := o.channel
	if fn == nil {
		return Connection{}, c.misuse(fmt.Errorf("%w: connect to %s.%s", ErrInvalidCallback, o.id, signal))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if o.destroyed {
		return Connection{}, c.misuse(fmt.Errorf("%w: %s", ErrObjectDestroyed, o.id))
	}
	info, ok := o.signals[signal]
	if !ok {
		return Connection{}, c.misuse(fmt.Errorf("%w: %s.%s", ErrUnknownSignal, o.id, signal))
	}

	o.nextConn++
	conn := Connection{obj: o, signal: info.index, id: o.nextConn}
	o.subs[info.index] = append(o.subs[info.index], subscription{id: conn.id, fn: fn})

	if len(o.subs[info.index]) == 1 && info.remote() {
		if err := c.send(c.ctx, protocol.NewConnectToSignal(o.id, info.index)); err != nil {
			delete(o.subs, info.index)
			return Connection{}, err
		}
	}
	return conn, nil
}

// Disconnect removes a subscription. Removing the last subscription to a plain
// signal sends disconnectFromSignal.
func (o *Object) Disconnect(conn Connection) error {
	c := o.channel
	if conn.obj != o {
		return c.misuse(fmt.Errorf("%w: connection does not belong to %s", ErrNotConnected, o.id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if conn.signal == hookSignal {
		hooks, ok := removeSubscription(o.hooks, conn.id)
		if !ok {
			return c.misuse(fmt.Errorf("%w: %s destroyed hook", ErrNotConnected, o.id))
		}
		o.hooks = hooks
		return nil
	}

	subs, ok := removeSubscription(o.subs[conn.signal], conn.id)
	if !ok {
		return c.misuse(fmt.Errorf("%w: %s signal %d", ErrNotConnected, o.id, conn.signal))
	}
	if len(subs) > 0 {
		o.subs[conn.signal] = subs
		return nil
	}

	delete(o.subs, conn.signal)
	if info, ok := o.signalsByIdx[conn.signal]; ok && info.remote() {
		return c.send(c.ctx, protocol.NewDisconnectFromSignal(o.id, conn.signal))
	}
	return nil
}

// OnDestroyed registers fn to run when the remote object is destroyed.
func (o *Object) OnDestroyed(fn func()) (Connection, error) {
	c := o.channel
	if fn == nil {
		return Connection{}, c.misuse(fmt.Errorf("%w: destroyed hook on %s", ErrInvalidCallback, o.id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if o.destroyed {
		return Connection{}, c.misuse(fmt.Errorf("%w: %s", ErrObjectDestroyed, o.id))
	}
	o.nextConn++
	conn := Connection{obj: o, signal: hookSignal, id: o.nextConn}
	o.hooks = append(o.hooks, subscription{id: conn.id, fn: func(...any) { fn() }})
	return conn, nil
}

func removeSubscription(subs []subscription, id uint64) ([]subscription, bool) {
	for i, s := range subs {
		if s.id == id {
			out := make([]subscription, 0, len(subs)-1)
			out = append(out, subs[:i]...)
			return append(out, subs[i+1:]...), true
		}
	}
	return subs, false
}

// signalIndex resolves a dispatch key, either a decimal index or a signal name.
func (o *Object) signalIndex(key string) (int, bool) {
	if index, err := strconv.Atoi(key); err == nil {
		return index, true
	}
	if info, ok := o.signals[key]; ok {
		return info.index, true
	}
	return 0, false
}

// subscribers snapshots the callbacks for a signal bound to args, in
// subscription order. Unknown keys yield nothing. c.mu must be held.
func (o *Object) subscribers(key string, args []any) []func() {
	index, ok := o.signalIndex(key)
	if !ok {
		return nil
	}
	return bind(o.subs[index], args)
}

// destroyCallbacks snapshots destroyed subscribers followed by destroyed hooks.
// c.mu must be held.
func (o *Object) destroyCallbacks(args []any) []func() {
	var out []func()
	if info, ok := o.signals[webchannel.DestroyedSignal]; ok {
		out = bind(o.subs[info.index], args)
	}
	return append(out, bind(o.hooks, nil)...)
}

// isDestroyedSignal reports whether index is this object's destroyed signal.
func (o *Object) isDestroyedSignal(index int) bool {
	info, ok := o.signalsByIdx[index]
	return ok && info.name == webchannel.DestroyedSignal
}

func bind(subs []subscription, args []any) []func() {
	out := make([]func(), 0, len(subs))
	for _, s := range subs {
		fn := s.fn
		out = append(out, func() { fn(args...) })
	}
	return out
}

// applyUpdate writes every changed property into the cache, then snapshots
// the subscribers of every signal named in the update. c.mu must be held.
func (o *Object) applyUpdate(u protocol.PropertyUpdate) []func() {
	c := o.channel
	for key, value := range u.Properties {
		index, ok := protocol.ToInt(key)
		if !ok {
			c.violation("property_index").Str("object", o.id).Str("property", key).Msg("property update with non-numeric index")
			continue
		}
		o.cache[index] = c.unwrap(value)
	}

	var callbacks []func()
	for _, key := range u.SignalKeys() {
		args, _ := c.unwrap(u.Signals[key]).([]any)
		if args == nil {
			args = []any{}
		}
		callbacks = append(callbacks, o.subscribers(key, args)...)
	}
	return callbacks
}
