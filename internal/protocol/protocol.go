package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luciancaetano/webchannel"
)

const (
	maxPayloadSize = 10 * 1024 * 1024 // 10MB max message size
)

// Message is one wire message. Fields irrelevant to a given type stay zero and
// are omitted when encoded.
type Message struct {
	Type     webchannel.MessageType `json:"type"`
	ID       *int                   `json:"id,omitempty"`
	Object   string                 `json:"object,omitempty"`
	Method   *int                   `json:"method,omitempty"`
	Signal   *int                   `json:"signal,omitempty"`
	Property *int                   `json:"property,omitempty"`
	Args     json.RawMessage        `json:"args,omitempty"`
	Value    json.RawMessage        `json:"value,omitempty"`
	Data     json.RawMessage        `json:"data,omitempty"`
}

// Encode serializes msg as a single JSON object.
func Encode(msg *Message) ([]byte, error) {
	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", webchannel.ErrFailedToEncode, err)
	}
	if len(out) > maxPayloadSize {
		return nil, fmt.Errorf("message size %d exceeds maximum %d bytes", len(out), maxPayloadSize)
	}
	return out, nil
}

// Decode parses one wire message. It fails if data is not a JSON object or has
// no type. Unrecognized type values are returned as-is for the caller to report.
func Decode(data []byte) (*Message, error) {
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("message size %d exceeds maximum %d bytes", len(data), maxPayloadSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New(webchannel.ErrInvalidMessageFormat)
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("%s: %w", webchannel.ErrInvalidMessageFormat, err)
	}
	if msg.Type == 0 {
		return nil, errors.New(webchannel.ErrMissingMessageType)
	}
	return &msg, nil
}

// DecodeArgs returns the message's positional arguments. A missing "args" field
// yields an empty slice.
func (m *Message) DecodeArgs() ([]any, error) {
	if len(m.Args) == 0 || bytes.Equal(m.Args, []byte("null")) {
		return []any{}, nil
	}
	var args []any
	if err := json.Unmarshal(m.Args, &args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return args, nil
}

// DecodeData unmarshals the "data" field into v. A missing field leaves v
// untouched.
func (m *Message) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}

func raw(v any) (json.RawMessage, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", webchannel.ErrFailedToEncode, err)
	}
	return out, nil
}
