package object

import (
	"maps"
	"slices"
	"strings"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/property"
)

const changePrefix = "change:"

// Event is delivered to listeners.
type Event struct {
	Target *NativeObject
	Type   string
	Data   any
}

// Handler handles an event. A non-nil return value is reported back to the
// notifying side.
type Handler func(Event) any

// Listener is a registered handler, used to unsubscribe.
type Listener struct {
	event string
	fn    Handler
}

// Event returns the event name the listener is registered for.
func (l *Listener) Event() string {
	return l.event
}

// NativeObject is the host side handle of one object in the native layer.
type NativeObject struct {
	ctx   *Context
	cid   string
	typ   string
	table property.Table
	owner any

	listeners map[string][]*Listener
	onDispose []func()
	disposed  bool
}

// New validates and encodes props against the table registered for typeTag,
// queues the create operation and registers the object in ctx. Const
// properties may only be given here. Nothing is queued when validation
// fails.
func New(ctx *Context, typeTag string, props map[string]any) (*NativeObject, error) {
	table, ok := ctx.registry.Lookup(typeTag)
	if !ok {
		return nil, unknownType(typeTag)
	}
	encoded := make(map[string]any, len(props))
	for _, name := range slices.Sorted(maps.Keys(props)) {
		d, ok := table.Lookup(name)
		if !ok {
			return nil, misuse("object.New", "", name, errors.ErrUnknownProperty)
		}
		if d.ReadOnly && !d.Const {
			return nil, misuse("object.New", "", name, errors.ErrReadOnly)
		}
		wire, err := d.Encode(props[name])
		if err != nil {
			return nil, err
		}
		encoded[name] = wire
	}

	o := &NativeObject{
		ctx:       ctx,
		cid:       ctx.nextCID(),
		typ:       typeTag,
		table:     table,
		listeners: make(map[string][]*Listener),
	}
	ctx.bridge.Create(o.cid, typeTag, encoded)
	ctx.register(o)
	return o, nil
}

// CID returns the opaque identifier shared with native code.
func (o *NativeObject) CID() string {
	return o.cid
}

// Type returns the native type tag.
func (o *NativeObject) Type() string {
	return o.typ
}

// Context returns the owning arena.
func (o *NativeObject) Context() *Context {
	return o.ctx
}

// Table returns the property table of the object type.
func (o *NativeObject) Table() property.Table {
	return o.table
}

// SetOwner records the value wrapping this object, typically a widget.
func (o *NativeObject) SetOwner(owner any) {
	o.owner = owner
}

// Owner returns the value set with SetOwner.
func (o *NativeObject) Owner() any {
	return o.owner
}

// IsDisposed reports whether Dispose has been called.
func (o *NativeObject) IsDisposed() bool {
	return o.disposed
}

// Set validates and encodes value, queues it and fires local
// "change:<name>" listeners.
func (o *NativeObject) Set(name string, value any) error {
	if o.disposed {
		return misuse("object.Set", o.cid, name, errors.ErrDisposed)
	}
	d, ok := o.table.Lookup(name)
	if !ok {
		return misuse("object.Set", o.cid, name, errors.ErrUnknownProperty)
	}
	if d.ReadOnly || d.Const {
		return misuse("object.Set", o.cid, name, errors.ErrReadOnly)
	}
	wire, err := d.Encode(value)
	if err != nil {
		return withTarget(err, o.cid)
	}
	o.ctx.bridge.Set(o.cid, name, wire)
	o.Trigger(changePrefix+name, d.Decode(wire))
	return nil
}

// SetAll sets several properties. Every value is validated before any is
// queued.
func (o *NativeObject) SetAll(props map[string]any) error {
	if o.disposed {
		return misuse("object.SetAll", o.cid, "", errors.ErrDisposed)
	}
	names := slices.Sorted(maps.Keys(props))
	for _, name := range names {
		d, ok := o.table.Lookup(name)
		if !ok {
			return misuse("object.SetAll", o.cid, name, errors.ErrUnknownProperty)
		}
		if d.ReadOnly || d.Const {
			return misuse("object.SetAll", o.cid, name, errors.ErrReadOnly)
		}
		if _, err := d.Encode(props[name]); err != nil {
			return withTarget(err, o.cid)
		}
	}
	for _, name := range names {
		if err := o.Set(name, props[name]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the decoded property value, reading through the batcher. A
// declared custom getter replaces the read; a nil wire value yields the
// declared default.
func (o *NativeObject) Get(name string) (any, error) {
	if o.disposed {
		return nil, misuse("object.Get", o.cid, name, errors.ErrDisposed)
	}
	d, ok := o.table.Lookup(name)
	if !ok {
		return nil, misuse("object.Get", o.cid, name, errors.ErrUnknownProperty)
	}
	b := o.ctx.bridge
	if d.NoCache {
		b.Cache().Delete(o.cid, name)
	}
	native := func() (any, error) { return b.Get(o.cid, name) }
	if d.Get != nil {
		return d.Get(native)
	}
	wire, err := native()
	if err != nil {
		return nil, err
	}
	return d.Decode(wire), nil
}

// Call flushes pending operations and invokes method on the native object.
func (o *NativeObject) Call(method string, params map[string]any) (any, error) {
	if o.disposed {
		return nil, misuse("object.Call", o.cid, method, errors.ErrDisposed)
	}
	return o.ctx.bridge.Call(o.cid, method, params)
}

// On registers fn for event. The first listener of a native event queues
// listen(cid, event, true); "change:" events are handled locally only.
func (o *NativeObject) On(event string, fn Handler) (*Listener, error) {
	if o.disposed {
		return nil, misuse("object.On", o.cid, event, errors.ErrDisposed)
	}
	l := &Listener{event: event, fn: fn}
	first := len(o.listeners[event]) == 0
	o.listeners[event] = append(o.listeners[event], l)
	if first && isNativeEvent(event) {
		o.ctx.bridge.Listen(o.cid, event, true)
	}
	return l, nil
}

// Off removes l. Removing the last listener of a native event queues
// listen(cid, event, false). Unknown listeners are ignored.
func (o *NativeObject) Off(l *Listener) {
	if l == nil || o.disposed {
		return
	}
	list := o.listeners[l.event]
	i := slices.Index(list, l)
	if i < 0 {
		return
	}
	list = slices.Delete(list, i, i+1)
	if len(list) > 0 {
		o.listeners[l.event] = list
		return
	}
	delete(o.listeners, l.event)
	if isNativeEvent(l.event) {
		o.ctx.bridge.Listen(o.cid, l.event, false)
	}
}

// Listeners returns the number of listeners registered for event.
func (o *NativeObject) Listeners(event string) int {
	return len(o.listeners[event])
}

// Trigger calls the listeners of event in registration order and returns
// the last non-nil result.
func (o *NativeObject) Trigger(event string, data any) any {
	var result any
	for _, l := range slices.Clone(o.listeners[event]) {
		if r := l.fn(Event{Target: o, Type: event, Data: data}); r != nil {
			result = r
		}
	}
	return result
}

// OnDispose registers fn to run when the object is disposed.
func (o *NativeObject) OnDispose(fn func()) {
	o.onDispose = append(o.onDispose, fn)
}

// Dispose fires "dispose" listeners and OnDispose callbacks, queues the
// destroy operation and removes the object from the arena. Calling it again
// does nothing.
func (o *NativeObject) Dispose() {
	if o.disposed {
		return
	}
	o.Trigger("dispose", nil)
	for _, fn := range o.onDispose {
		fn()
	}
	o.disposed = true
	o.listeners = nil
	o.onDispose = nil
	o.ctx.bridge.Destroy(o.cid)
	o.ctx.unregister(o)
}

func isNativeEvent(event string) bool {
	return !strings.HasPrefix(event, changePrefix) && event != "dispose"
}

func misuse(op, cid, name string, err error) error {
	return &errors.TetherError{Op: op, Kind: errors.KindMisuse, Target: cid, Property: name, Err: err}
}

func withTarget(err error, cid string) error {
	var te *errors.TetherError
	if errors.As(err, &te) && te.Target == "" {
		te.Target = cid
	}
	return err
}
