// Package platform defines the boundary between the Tether runtime and the
// native rendering layer: the Transport primitives, the operation record the
// batcher replays, and transports that carry operations over a method-channel
// style native bridge or an output stream.
package platform

import (
	"encoding/json"
	"maps"
)

// Transport is the synchronous native boundary. Create, Set, Listen and
// Destroy are only ever called by the batcher during a flush; Get and Call
// are round trips issued after the queue has been drained.
type Transport interface {
	Create(id, typ string, properties map[string]any) error
	Set(id string, properties map[string]any) error
	Listen(id, event string, listen bool) error
	Destroy(id string) error
	Get(id, property string) (any, error)
	Call(id, method string, parameters map[string]any) (any, error)
}

// BatchTransport is implemented by transports that accept a whole flush
// burst at once. Operations must be applied in slice order.
type BatchTransport interface {
	Transport
	Apply(ops []Operation) error
}

// OpKind names an operation.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpSet     OpKind = "set"
	OpListen  OpKind = "listen"
	OpDestroy OpKind = "destroy"
	OpGet     OpKind = "get"
	OpCall    OpKind = "call"
)

// Operation is one record of the operation log. Only the fields relevant to
// Op are meaningful.
type Operation struct {
	Op         OpKind
	ID         string
	Type       string         // create
	Properties map[string]any // create, set
	Event      string         // listen
	Listen     bool           // listen
	Property   string         // get
	Method     string         // call
	Parameters map[string]any // call
}

// Clone returns a copy whose property and parameter maps are not shared.
func (o Operation) Clone() Operation {
	o.Properties = maps.Clone(o.Properties)
	o.Parameters = maps.Clone(o.Parameters)
	return o
}

// MarshalJSON encodes only the fields that belong to the operation kind.
func (o Operation) MarshalJSON() ([]byte, error) {
	m := map[string]any{"op": o.Op, "id": o.ID}
	switch o.Op {
	case OpCreate:
		m["type"] = o.Type
		m["properties"] = nonNil(o.Properties)
	case OpSet:
		m["properties"] = nonNil(o.Properties)
	case OpListen:
		m["event"] = o.Event
		m["listen"] = o.Listen
	case OpGet:
		m["property"] = o.Property
	case OpCall:
		m["method"] = o.Method
		m["parameters"] = nonNil(o.Parameters)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the shape written by MarshalJSON.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op         OpKind         `json:"op"`
		ID         string         `json:"id"`
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Event      string         `json:"event"`
		Listen     bool           `json:"listen"`
		Property   string         `json:"property"`
		Method     string         `json:"method"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Operation(raw)
	return nil
}

// ApplyTo replays a queued operation against t. Get and Call are not
// replayable and are ignored.
func (o Operation) ApplyTo(t Transport) error {
	switch o.Op {
	case OpCreate:
		return t.Create(o.ID, o.Type, o.Properties)
	case OpSet:
		return t.Set(o.ID, o.Properties)
	case OpListen:
		return t.Listen(o.ID, o.Event, o.Listen)
	case OpDestroy:
		return t.Destroy(o.ID)
	}
	return nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
