package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/luciancaetano/webchannel"
)

// NewInit builds the handshake request. The correlator assigns its id.
func NewInit() *Message {
	return &Message{Type: webchannel.MessageInit}
}

// NewIdle builds the acknowledgement sent after the handshake and after every
// processed property update.
func NewIdle() *Message {
	return &Message{Type: webchannel.MessageIdle}
}

// NewDebug builds a diagnostic passthrough message.
func NewDebug(data any) (*Message, error) {
	payload, err := raw(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: webchannel.MessageDebug, Data: payload}, nil
}

// NewInvokeMethod builds a method call. args are sent as given, so object
// references must already be wrapped.
func NewInvokeMethod(object string, method int, args []any) (*Message, error) {
	if args == nil {
		args = []any{}
	}
	payload, err := raw(args)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:   webchannel.MessageInvokeMethod,
		Object: object,
		Method: intPtr(method),
		Args:   payload,
	}, nil
}

// NewConnectToSignal builds a subscription request.
func NewConnectToSignal(object string, signal int) *Message {
	return &Message{
		Type:   webchannel.MessageConnectToSignal,
		Object: object,
		Signal: intPtr(signal),
	}
}

// NewDisconnectFromSignal builds an unsubscription request.
func NewDisconnectFromSignal(object string, signal int) *Message {
	return &Message{
		Type:   webchannel.MessageDisconnectFromSignal,
		Object: object,
		Signal: intPtr(signal),
	}
}

// NewSetProperty builds a property write.
func NewSetProperty(object string, property int, value any) (*Message, error) {
	payload, err := raw(value)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:     webchannel.MessageSetProperty,
		Object:   object,
		Property: intPtr(property),
		Value:    payload,
	}, nil
}

// PropertyUpdate is one entry of a propertyUpdate batch.
type PropertyUpdate struct {
	Object     string           `json:"object"`
	Signals    map[string][]any `json:"signals"`
	Properties map[string]any   `json:"properties"`
}

// SignalKeys returns the update's signal keys, numeric keys first in ascending
// order, then any named keys in lexical order.
func (u PropertyUpdate) SignalKeys() []string {
	keys := make([]string, 0, len(u.Signals))
	for k := range u.Signals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// DecodePropertyUpdates reads the batch carried by a propertyUpdate message.
func DecodePropertyUpdates(m *Message) ([]PropertyUpdate, error) {
	if len(m.Data) == 0 {
		return nil, fmt.Errorf("%s: propertyUpdate without data", webchannel.ErrInvalidMessageFormat)
	}
	var updates []PropertyUpdate
	if err := json.Unmarshal(m.Data, &updates); err != nil {
		return nil, fmt.Errorf("%s: %w", webchannel.ErrInvalidMessageFormat, err)
	}
	return updates, nil
}
