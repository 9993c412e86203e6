// Package property declares how native object properties are validated and
// converted between Go values and their wire representation.
//
// Each native type tag maps to a Table of Descriptors. Tables are composed by
// explicit merging: a widget table is the base widget table merged with the
// properties the concrete widget adds or overrides.
package property

import (
	"fmt"
	"slices"

	"github.com/go-drift/tether/pkg/errors"
)

// Type converts values of one kind of property. Encode validates a Go value
// and returns its wire form; Decode turns a wire value back into the value
// handed to callers. Both must be pure.
type Type struct {
	Name   string
	Encode func(value any) (any, error)
	Decode func(wire any) any
}

func (t Type) encode(value any) (any, error) {
	if t.Encode == nil {
		return value, nil
	}
	return t.Encode(value)
}

func (t Type) decode(wire any) any {
	if t.Decode == nil {
		return wire
	}
	return t.Decode(wire)
}

// Descriptor declares one property.
type Descriptor struct {
	Name    string
	Type    Type
	Default any
	// ReadOnly properties cannot be set at all; Const properties can only be
	// given at construction.
	ReadOnly bool
	Const    bool
	// NoCache properties are always read from native code.
	NoCache bool
	// Get, when set, replaces the default read. native performs the
	// regular read through the batcher.
	Get func(native func() (any, error)) (any, error)
}

// Encode validates value and returns its wire form. Failures are input
// errors naming the property and the offending value.
func (d Descriptor) Encode(value any) (any, error) {
	wire, err := d.Type.encode(value)
	if err != nil {
		return nil, &errors.TetherError{
			Op:       "property.Encode",
			Kind:     errors.KindInput,
			Property: d.Name,
			Err:      &ValueError{Property: d.Name, Value: value, Reason: err},
		}
	}
	return wire, nil
}

// Decode converts a wire value. A nil wire value yields the default.
func (d Descriptor) Decode(wire any) any {
	if wire == nil {
		return d.Default
	}
	return d.Type.decode(wire)
}

// ValueError describes a value rejected by a property type.
type ValueError struct {
	Property string
	Value    any
	Reason   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("Invalid value for property %q: %v", e.Property, e.Reason)
}

func (e *ValueError) Unwrap() error {
	return e.Reason
}

// Is matches errors.ErrInvalidValue.
func (e *ValueError) Is(target error) bool {
	return target == errors.ErrInvalidValue
}

// Table is an ordered set of descriptors.
type Table struct {
	order []string
	byKey map[string]Descriptor
}

// NewTable builds a table. Later descriptors with a repeated name replace
// earlier ones but keep the original position.
func NewTable(descs ...Descriptor) Table {
	t := Table{byKey: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		t.put(d)
	}
	return t
}

func (t *Table) put(d Descriptor) {
	if t.byKey == nil {
		t.byKey = make(map[string]Descriptor)
	}
	if _, exists := t.byKey[d.Name]; !exists {
		t.order = append(t.order, d.Name)
	}
	t.byKey[d.Name] = d
}

// Lookup returns the descriptor for name.
func (t Table) Lookup(name string) (Descriptor, bool) {
	d, ok := t.byKey[name]
	return d, ok
}

// Names returns the property names in declaration order.
func (t Table) Names() []string {
	return slices.Clone(t.order)
}

// Len returns the number of properties.
func (t Table) Len() int {
	return len(t.order)
}

// Merge returns a table holding t's descriptors followed by those of
// tables. Later tables override earlier ones.
func (t Table) Merge(tables ...Table) Table {
	out := Table{byKey: make(map[string]Descriptor, t.Len())}
	for _, name := range t.order {
		out.put(t.byKey[name])
	}
	for _, other := range tables {
		for _, name := range other.order {
			out.put(other.byKey[name])
		}
	}
	return out
}

// Registry maps native type tags to property tables.
type Registry struct {
	tables map[string]Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Table)}
}

// Register sets the table for typeTag, replacing any previous one.
func (r *Registry) Register(typeTag string, t Table) {
	r.tables[typeTag] = t
}

// Lookup returns the table for typeTag.
func (r *Registry) Lookup(typeTag string) (Table, bool) {
	t, ok := r.tables[typeTag]
	return t, ok
}

// Extend registers typeTag as the table of base merged with t.
func (r *Registry) Extend(typeTag, base string, t Table) error {
	b, ok := r.tables[base]
	if !ok {
		return fmt.Errorf("property: unknown base type %q", base)
	}
	r.tables[typeTag] = b.Merge(t)
	return nil
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.tables))
	for tag := range r.tables {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
