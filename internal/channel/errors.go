package channel

import (
	"errors"

	"github.com/luciancaetano/webchannel"
)

var (
	// ErrUnknownResponse is logged when a response carries an id with no
	// pending call.
	ErrUnknownResponse = errors.New(webchannel.ErrUnknownResponse)
	// ErrUnknownObject is logged when a message addresses an identity that is
	// not registered.
	ErrUnknownObject = errors.New(webchannel.ErrUnknownObject)
	// ErrMissingManifest is logged when a reference to an unseen identity
	// carries no manifest.
	ErrMissingManifest = errors.New(webchannel.ErrMissingManifest)
	// ErrAlreadyRegistered is returned when an identity is instantiated twice.
	ErrAlreadyRegistered = errors.New(webchannel.ErrAlreadyRegistered)

	// ErrExplicitID is returned when a message that expects a response already
	// carries an id.
	ErrExplicitID = errors.New(webchannel.ErrExplicitID)
	// ErrUnknownMethod is returned when invoking a method the manifest does not list.
	ErrUnknownMethod = errors.New(webchannel.ErrUnknownMethod)
	// ErrUnknownProperty is returned when writing a property the manifest does not list.
	ErrUnknownProperty = errors.New(webchannel.ErrUnknownProperty)
	// ErrUnknownSignal is returned when connecting to a signal the manifest does not list.
	ErrUnknownSignal = errors.New(webchannel.ErrUnknownSignal)
	// ErrInvalidCallback is returned for nil callbacks.
	ErrInvalidCallback = errors.New(webchannel.ErrInvalidCallback)
	// ErrNilPropertyValue is returned when writing nil to a property.
	ErrNilPropertyValue = errors.New(webchannel.ErrNilPropertyValue)
	// ErrNotConnected is returned when disconnecting an unknown connection.
	ErrNotConnected = errors.New(webchannel.ErrNotConnected)
	// ErrObjectDestroyed is returned for any use of a destroyed object.
	ErrObjectDestroyed = errors.New(webchannel.ErrObjectDestroyed)

	// ErrAlreadyAttached is returned by Attach unless the channel is disconnected.
	ErrAlreadyAttached = errors.New(webchannel.ErrAlreadyAttached)
)
