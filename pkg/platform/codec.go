package platform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MessageCodec converts values to and from the bytes exchanged with native
// code.
type MessageCodec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONCodec is the wire format of the bridge. Numbers decode as float64 and
// an empty payload decodes as nil.
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode rejects payloads carrying more than one JSON value.
func (JSONCodec) Decode(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return v, nil
}

// DefaultCodec is used by the channel and stream transports and by
// DecodeNotification.
var DefaultCodec MessageCodec = JSONCodec{}

var (
	// ErrInvalidArguments wraps values that cannot be encoded or messages
	// with the wrong shape.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable means no NativeBridge is attached.
	ErrPlatformUnavailable = errors.New("platform unavailable")

	// ErrClosed is returned by a transport after Close.
	ErrClosed = errors.New("platform: transport closed")
)

// ChannelError is a failure reported by native code in the
// {"error": {"code", "message", "details"}} envelope.
type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message == "" {
		return "native error " + e.Code
	}
	return fmt.Sprintf("native error %s: %s", e.Code, e.Message)
}
