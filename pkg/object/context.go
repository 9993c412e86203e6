// Package object gives native objects their identity: opaque cids, the live
// object arena notifications are dispatched through, property access via the
// type tables in package property, and event subscriptions.
package object

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/bridge"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/property"
)

// Context is the arena of live native objects. It hands out cids, owns the
// batcher the objects talk through, and dispatches native notifications by
// cid. A Context is confined to the engine loop.
type Context struct {
	bridge   *bridge.NativeBridge
	registry *property.Registry
	logger   *zap.Logger

	next    int
	objects map[string]*NativeObject
}

// NewContext returns an empty arena using b and the property tables of r.
func NewContext(b *bridge.NativeBridge, r *property.Registry) *Context {
	if r == nil {
		r = property.NewRegistry()
	}
	return &Context{
		bridge:   b,
		registry: r,
		logger:   zap.NewNop(),
		objects:  make(map[string]*NativeObject),
	}
}

// SetLogger replaces the logger. Nil restores the no-op logger.
func (c *Context) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	c.logger = l
}

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Bridge returns the batcher.
func (c *Context) Bridge() *bridge.NativeBridge {
	return c.bridge
}

// Registry returns the property tables.
func (c *Context) Registry() *property.Registry {
	return c.registry
}

// Find returns the live object with the given cid.
func (c *Context) Find(cid string) (*NativeObject, bool) {
	o, ok := c.objects[cid]
	return o, ok
}

// Len returns the number of live objects.
func (c *Context) Len() int {
	return len(c.objects)
}

// Notify dispatches a native notification to the object with the given cid
// and returns what its listeners returned. Unknown and disposed cids are
// ignored.
//
// A "change:<property>" event updates the cached value of the property
// without queueing a set, then fires local change listeners with the
// decoded value.
func (c *Context) Notify(cid, event string, data any) (any, error) {
	o, ok := c.objects[cid]
	if !ok || o.disposed {
		c.logger.Warn("notification for unknown object ignored",
			zap.String("target", cid), zap.String("event", event))
		return nil, nil
	}
	if name, ok := strings.CutPrefix(event, changePrefix); ok {
		d, declared := o.table.Lookup(name)
		if !declared {
			return nil, &errors.TetherError{
				Op:       "object.Notify",
				Kind:     errors.KindParsing,
				Target:   cid,
				Property: name,
				Err:      errors.ErrUnknownProperty,
			}
		}
		c.bridge.Cache().Store(cid, name, data)
		return o.Trigger(event, d.Decode(data)), nil
	}
	return o.Trigger(event, data), nil
}

func (c *Context) nextCID() string {
	c.next++
	return "$" + strconv.Itoa(c.next)
}

func (c *Context) register(o *NativeObject) {
	c.objects[o.cid] = o
}

func (c *Context) unregister(o *NativeObject) {
	delete(c.objects, o.cid)
}

func unknownType(typeTag string) error {
	return &errors.TetherError{
		Op:   "object.New",
		Kind: errors.KindInput,
		Err:  fmt.Errorf("no property table for native type %q", typeTag),
	}
}
