package platform

import (
	"io"
	"sync"
)

// StreamTransport writes every operation as one encoded line to an
// io.Writer. Reads are answered from an optional lookup function and
// default to nil. Used by the command line runner and for tracing.
type StreamTransport struct {
	mu    sync.Mutex
	w     io.Writer
	codec MessageCodec

	// GetFunc answers Get round trips. Nil answers nil.
	GetFunc func(id, property string) (any, error)
	// CallFunc answers Call round trips. Nil answers nil.
	CallFunc func(id, method string, parameters map[string]any) (any, error)
}

// NewStreamTransport returns a transport writing to w with DefaultCodec.
func NewStreamTransport(w io.Writer) *StreamTransport {
	return &StreamTransport{w: w, codec: DefaultCodec}
}

func (t *StreamTransport) Create(id, typ string, properties map[string]any) error {
	return t.write(Operation{Op: OpCreate, ID: id, Type: typ, Properties: properties})
}

func (t *StreamTransport) Set(id string, properties map[string]any) error {
	return t.write(Operation{Op: OpSet, ID: id, Properties: properties})
}

func (t *StreamTransport) Listen(id, event string, listen bool) error {
	return t.write(Operation{Op: OpListen, ID: id, Event: event, Listen: listen})
}

func (t *StreamTransport) Destroy(id string) error {
	return t.write(Operation{Op: OpDestroy, ID: id})
}

func (t *StreamTransport) Get(id, property string) (any, error) {
	if err := t.write(Operation{Op: OpGet, ID: id, Property: property}); err != nil {
		return nil, err
	}
	if t.GetFunc == nil {
		return nil, nil
	}
	return t.GetFunc(id, property)
}

func (t *StreamTransport) Call(id, method string, parameters map[string]any) (any, error) {
	if err := t.write(Operation{Op: OpCall, ID: id, Method: method, Parameters: parameters}); err != nil {
		return nil, err
	}
	if t.CallFunc == nil {
		return nil, nil
	}
	return t.CallFunc(id, method, parameters)
}

func (t *StreamTransport) write(op Operation) error {
	data, err := t.codec.Encode(op)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return ErrClosed
	}
	if _, err := t.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}
