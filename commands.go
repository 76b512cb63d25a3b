package webchannel

import "fmt"

// MessageType is the "type" discriminant carried by every wire message.
type MessageType int

// Wire message types. The numeric values are fixed by the protocol.
const (
	MessageSignal               MessageType = 1
	MessagePropertyUpdate       MessageType = 2
	MessageInit                 MessageType = 3
	MessageIdle                 MessageType = 4
	MessageDebug                MessageType = 5
	MessageInvokeMethod         MessageType = 6
	MessageConnectToSignal      MessageType = 7
	MessageDisconnectFromSignal MessageType = 8
	MessageSetProperty          MessageType = 9
	MessageResponse             MessageType = 10
)

// String returns the protocol name of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageSignal:
		return "signal"
	case MessagePropertyUpdate:
		return "propertyUpdate"
	case MessageInit:
		return "init"
	case MessageIdle:
		return "idle"
	case MessageDebug:
		return "debug"
	case MessageInvokeMethod:
		return "invokeMethod"
	case MessageConnectToSignal:
		return "connectToSignal"
	case MessageDisconnectFromSignal:
		return "disconnectFromSignal"
	case MessageSetProperty:
		return "setProperty"
	case MessageResponse:
		return "response"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Wire names
const (
	// ObjectMarker tags a JSON object as a reference to a remote object.
	ObjectMarker = "__QObject*__"
	// DestroyedSignal is the signal every remote object fires when it goes away.
	DestroyedSignal = "destroyed"
	// NotifySuffix is appended to a property name when the remote side elides
	// the name of its notify signal.
	NotifySuffix = "Changed"
)

// Standard error messages
const (
	// Protocol errors
	ErrInvalidMessageFormat = "invalid message format"
	ErrMissingMessageType   = "message has no type"
	ErrUnknownMessageType   = "unknown message type"
	ErrUnknownResponse      = "response for unknown call id"
	ErrUnknownObject        = "unknown object"
	ErrMissingManifest      = "object reference without manifest data"
	ErrInvalidManifest      = "invalid object manifest"
	ErrAlreadyRegistered    = "object already registered"

	// API misuse errors
	ErrExplicitID       = "cannot exec message that already carries an id"
	ErrUnknownMethod    = "unknown method"
	ErrUnknownProperty  = "unknown property"
	ErrUnknownSignal    = "unknown signal"
	ErrInvalidCallback  = "callback is not invocable"
	ErrNilPropertyValue = "property value must not be nil"
	ErrNotConnected     = "no such signal connection"
	ErrObjectDestroyed  = "object has been destroyed"

	// Connection errors
	ErrAlreadyAttached  = "channel already attached"
	ErrConnectionClosed = "connection is closed"
	ErrContextCancelled = "connection context cancelled"
	ErrFailedToEncode   = "failed to encode message"
	ErrAlreadyRunning   = "receive loop already running"
	ErrMissingAddress   = "no address to connect to"
)
