package platform

import (
	"fmt"
	"sync"

	"github.com/go-drift/tether/pkg/internal/convert"
)

// DefaultChannel is the method channel operations are sent on.
const DefaultChannel = "tether/bridge"

// NativeBridge is the raw interface to native platform code, implemented by
// the embedder (a CGO shim, a socket, or a test fake).
type NativeBridge interface {
	// InvokeMethod calls a method on the native side and returns the
	// encoded result.
	InvokeMethod(channel, method string, args []byte) ([]byte, error)
}

// ChannelTransport carries operations to a NativeBridge as method
// invocations on a single channel, encoding arguments with a MessageCodec.
type ChannelTransport struct {
	bridge  NativeBridge
	channel string
	codec   MessageCodec
	batch   bool

	mu     sync.Mutex
	closed bool
}

// ChannelOption configures a ChannelTransport.
type ChannelOption func(*ChannelTransport)

// WithChannel overrides the channel name.
func WithChannel(name string) ChannelOption {
	return func(t *ChannelTransport) { t.channel = name }
}

// WithCodec overrides the message codec.
func WithCodec(codec MessageCodec) ChannelOption {
	return func(t *ChannelTransport) { t.codec = codec }
}

// WithBatching controls whether Apply sends a flush burst as one "batch"
// invocation (the default) or as one invocation per operation.
func WithBatching(enabled bool) ChannelOption {
	return func(t *ChannelTransport) { t.batch = enabled }
}

// NewChannelTransport returns a transport over bridge.
func NewChannelTransport(bridge NativeBridge, opts ...ChannelOption) *ChannelTransport {
	t := &ChannelTransport{
		bridge:  bridge,
		channel: DefaultChannel,
		codec:   DefaultCodec,
		batch:   true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Channel returns the channel name.
func (t *ChannelTransport) Channel() string {
	return t.channel
}

// Close detaches the transport; later calls fail with ErrClosed.
func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *ChannelTransport) Create(id, typ string, properties map[string]any) error {
	_, err := t.invoke(string(OpCreate), map[string]any{
		"id":         id,
		"type":       typ,
		"properties": nonNil(properties),
	})
	return err
}

func (t *ChannelTransport) Set(id string, properties map[string]any) error {
	_, err := t.invoke(string(OpSet), map[string]any{
		"id":         id,
		"properties": nonNil(properties),
	})
	return err
}

func (t *ChannelTransport) Listen(id, event string, listen bool) error {
	_, err := t.invoke(string(OpListen), map[string]any{
		"id":     id,
		"event":  event,
		"listen": listen,
	})
	return err
}

func (t *ChannelTransport) Destroy(id string) error {
	_, err := t.invoke(string(OpDestroy), map[string]any{"id": id})
	return err
}

func (t *ChannelTransport) Get(id, property string) (any, error) {
	return t.invoke(string(OpGet), map[string]any{
		"id":       id,
		"property": property,
	})
}

func (t *ChannelTransport) Call(id, method string, parameters map[string]any) (any, error) {
	return t.invoke(string(OpCall), map[string]any{
		"id":         id,
		"method":     method,
		"parameters": nonNil(parameters),
	})
}

// Apply sends ops in order, as one "batch" invocation when batching is on.
func (t *ChannelTransport) Apply(ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}
	if !t.batch {
		for _, op := range ops {
			if err := op.ApplyTo(t); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := t.invoke("batch", map[string]any{"operations": ops})
	return err
}

func (t *ChannelTransport) invoke(method string, args any) (any, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if t.bridge == nil {
		return nil, ErrPlatformUnavailable
	}

	argsData, err := t.codec.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	resultData, err := t.bridge.InvokeMethod(t.channel, method, argsData)
	if err != nil {
		return nil, err
	}

	result, err := t.codec.Decode(resultData)
	if err != nil {
		return nil, err
	}
	if cerr := channelErrorFrom(result); cerr != nil {
		return nil, cerr
	}
	return result, nil
}

// channelErrorFrom recognizes the {"error": {"code", "message"}} envelope
// native code uses to report failures through a successful invocation.
func channelErrorFrom(result any) *ChannelError {
	m, ok := convert.ToMap(result)
	if !ok || len(m) != 1 {
		return nil
	}
	env, ok := convert.ToMap(m["error"])
	if !ok {
		return nil
	}
	code, _ := env["code"].(string)
	if code == "" {
		return nil
	}
	msg, _ := env["message"].(string)
	return &ChannelError{Code: code, Message: msg, Details: env["details"]}
}
