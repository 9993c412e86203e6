// Package device describes the host device as a native singleton object.
//
// The device exposes read-only facts about the platform and screen. Facts
// that never change, such as the model or the scale factor, are read from
// native once and kept for the lifetime of the object. The orientation is
// kept current through native notifications:
//
//	d, _ := device.New(ctx)
//	d.On("change:orientation", func(e object.Event) any {
//		log.Println("now", e.Data)
//		return nil
//	})
package device

import (
	stderrors "errors"
	"slices"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/object"
	"github.com/go-drift/tether/pkg/property"
)

// Type is the native type tag of the device.
const Type = "tether.Device"

// OrientationEvent is the native notification carrying a new orientation
// as {"orientation": value}.
const OrientationEvent = "orientationChanged"

const orientationChange = "change:orientation"

// ErrNotDisposable is returned by Dispose.
var ErrNotDisposable = stderrors.New("cannot dispose device object")

// Properties is the property table of the device. Every property is
// read-only.
var Properties = property.NewTable(
	property.Descriptor{Name: "model", Type: property.String, ReadOnly: true, Const: true},
	property.Descriptor{Name: "vendor", Type: property.String, ReadOnly: true, Const: true},
	property.Descriptor{Name: "platform", Type: property.String, ReadOnly: true, Const: true},
	property.Descriptor{Name: "version", Type: property.String, ReadOnly: true, Const: true},
	property.Descriptor{Name: "name", Type: property.String, ReadOnly: true, Const: true},
	property.Descriptor{Name: "language", Type: property.String, ReadOnly: true, Const: true},
	property.Descriptor{Name: "orientation", Type: property.String, ReadOnly: true},
	property.Descriptor{Name: "screenWidth", Type: property.Number, ReadOnly: true, Const: true},
	property.Descriptor{Name: "screenHeight", Type: property.Number, ReadOnly: true, Const: true},
	property.Descriptor{Name: "scaleFactor", Type: property.Number, ReadOnly: true, Const: true},
)

// readOnce lists the properties whose first non-empty native value is kept.
var readOnce = []string{"model", "vendor", "platform", "version", "scaleFactor"}

// Register adds the device table to r.
func Register(r *property.Registry) {
	r.Register(Type, Properties)
}

// Device is the host side handle of the native device object.
type Device struct {
	obj    *object.NativeObject
	stored map[string]any
	relay  *object.Listener
}

// New creates the device object in ctx. The type must be registered.
func New(ctx *object.Context) (*Device, error) {
	obj, err := object.New(ctx, Type, nil)
	if err != nil {
		return nil, err
	}
	d := &Device{obj: obj, stored: make(map[string]any)}
	obj.SetOwner(d)
	return d, nil
}

// Object returns the underlying native object.
func (d *Device) Object() *object.NativeObject { return d.obj }

// CID returns the native identifier.
func (d *Device) CID() string { return d.obj.CID() }

// Get returns a device property.
func (d *Device) Get(name string) (any, error) {
	if v, ok := d.stored[name]; ok {
		return v, nil
	}
	v, err := d.obj.Get(name)
	if err != nil {
		return nil, err
	}
	if slices.Contains(readOnce, name) && !empty(v) {
		d.stored[name] = v
	}
	return v, nil
}

// Set always fails; device properties are read-only.
func (d *Device) Set(name string, value any) error {
	return d.obj.Set(name, value)
}

// On registers fn for event. Listening to "change:orientation" subscribes
// to the native orientation notification while at least one such listener
// exists.
func (d *Device) On(event string, fn object.Handler) (*object.Listener, error) {
	l, err := d.obj.On(event, fn)
	if err != nil {
		return nil, err
	}
	if event == orientationChange && d.relay == nil {
		d.relay, err = d.obj.On(OrientationEvent, d.orientationChanged)
		if err != nil {
			d.obj.Off(l)
			return nil, err
		}
	}
	return l, nil
}

// Off removes l and drops the native subscription with the last
// orientation listener.
func (d *Device) Off(l *object.Listener) {
	d.obj.Off(l)
	if d.relay != nil && d.obj.Listeners(orientationChange) == 0 {
		d.obj.Off(d.relay)
		d.relay = nil
	}
}

// Dispose fails: the device lives as long as its context.
func (d *Device) Dispose() error {
	return &errors.TetherError{
		Op:     "device.Dispose",
		Kind:   errors.KindMisuse,
		Target: d.obj.CID(),
		Err:    ErrNotDisposable,
	}
}

// orientationChanged turns the native notification into a change event.
func (d *Device) orientationChanged(e object.Event) any {
	var value any
	if m, ok := e.Data.(map[string]any); ok {
		value = m["orientation"]
	}
	d.obj.Context().Bridge().Cache().Store(d.obj.CID(), "orientation", value)
	return d.obj.Trigger(orientationChange, value)
}

func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case float64:
		return x == 0
	}
	return false
}
