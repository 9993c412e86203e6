package constraint

import (
	"regexp"
	"strings"

	"github.com/go-drift/tether/pkg/errors"
)

// RefKind discriminates the reference union.
type RefKind int

const (
	// RefPercent anchors to a percentage of the parent.
	RefPercent RefKind = iota
	// RefWidget anchors to a specific sibling object.
	RefWidget
	// RefSelector anchors to the first sibling matching a selector.
	RefSelector
	// RefPrev anchors to the previous sibling in child order.
	RefPrev
	// RefNext anchors to the next sibling in child order.
	RefNext
)

func (k RefKind) String() string {
	switch k {
	case RefPercent:
		return "percent"
	case RefWidget:
		return "widget"
	case RefSelector:
		return "selector"
	case RefPrev:
		return "prev"
	case RefNext:
		return "next"
	default:
		return "unknown"
	}
}

// Identifiable is implemented by anything a constraint can reference
// directly, usually a widget.
type Identifiable interface {
	CID() string
}

// typeNamer lets referenced widgets render as Type[cid="$1"].
type typeNamer interface {
	TypeName() string
}

var selectorPattern = regexp.MustCompile(`^(\*|([#.A-Z][A-Za-z0-9_-]+))$`)

// IsSelector reports whether s matches the sibling selector grammar.
func IsSelector(s string) bool {
	return selectorPattern.MatchString(s)
}

// Reference is the anchor of a constraint.
type Reference struct {
	kind     RefKind
	percent  Percent
	widget   Identifiable
	selector string
}

var (
	// Prev is the previous-sibling sentinel, written "prev()".
	Prev = Reference{kind: RefPrev}
	// Next is the next-sibling sentinel, written "next()".
	Next = Reference{kind: RefNext}
)

// PercentRef returns a reference to a percentage of the parent.
func PercentRef(p Percent) Reference {
	return Reference{kind: RefPercent, percent: p}
}

// WidgetRef returns a reference to a sibling object.
func WidgetRef(w Identifiable) Reference {
	return Reference{kind: RefWidget, widget: w}
}

// SelectorRef returns a reference to the first sibling matching selector.
func SelectorRef(selector string) (Reference, error) {
	if !IsSelector(selector) {
		return Reference{}, invalid("constraint.SelectorRef", errors.KindReference,
			"Invalid sibling selector %s", errors.ValueString(selector))
	}
	return Reference{kind: RefSelector, selector: selector}, nil
}

// Kind returns which variant the reference holds.
func (r Reference) Kind() RefKind { return r.kind }

// Percent returns the percentage when Kind is RefPercent.
func (r Reference) Percent() (Percent, bool) {
	return r.percent, r.kind == RefPercent
}

// Widget returns the referenced object when Kind is RefWidget.
func (r Reference) Widget() (Identifiable, bool) {
	return r.widget, r.kind == RefWidget
}

// Selector returns the selector when Kind is RefSelector.
func (r Reference) Selector() (string, bool) {
	return r.selector, r.kind == RefSelector
}

// IsZero reports whether r is the zero-percent reference.
func (r Reference) IsZero() bool {
	return r.kind == RefPercent && r.percent.percent == 0
}

// Equal reports whether two references name the same anchor. Widget
// references compare by cid.
func (r Reference) Equal(o Reference) bool {
	if r.kind != o.kind {
		return false
	}
	switch r.kind {
	case RefPercent:
		return r.percent == o.percent
	case RefWidget:
		if r.widget == nil || o.widget == nil {
			return r.widget == o.widget
		}
		return r.widget.CID() == o.widget.CID()
	case RefSelector:
		return r.selector == o.selector
	}
	return true
}

func (r Reference) String() string {
	return ReferenceString(r)
}

// ReferenceString renders a reference the way it can be written back:
// "50%", "prev()", "next()", a selector, or Type[cid="$1"] for objects.
func ReferenceString(r Reference) string {
	switch r.kind {
	case RefPercent:
		return r.percent.String()
	case RefWidget:
		name := "Widget"
		if tn, ok := r.widget.(typeNamer); ok {
			name = tn.TypeName()
		}
		cid := ""
		if r.widget != nil {
			cid = r.widget.CID()
		}
		return name + `[cid="` + cid + `"]`
	case RefPrev:
		return "prev()"
	case RefNext:
		return "next()"
	default:
		return r.selector
	}
}

// NormalizeReference converts any accepted reference literal to a Reference:
// percent-like values, objects, sentinels, "prev()"/"next()" and selectors.
func NormalizeReference(value any) (Reference, error) {
	switch v := value.(type) {
	case Reference:
		if v.kind == RefSelector && !IsSelector(v.selector) {
			break
		}
		return v, nil
	case *Reference:
		if v != nil {
			return NormalizeReference(*v)
		}
	}
	if p, err := PercentFrom(value); err == nil {
		return PercentRef(p), nil
	}
	if w, ok := value.(Identifiable); ok && w != nil {
		return WidgetRef(w), nil
	}
	if s, ok := value.(string); ok {
		str := strings.TrimSpace(s)
		switch {
		case str == "prev()":
			return Prev, nil
		case str == "next()":
			return Next, nil
		case IsSelector(str):
			return Reference{kind: RefSelector, selector: str}, nil
		}
	}
	return Reference{}, invalid("constraint.NormalizeReference", errors.KindReference,
		"%s is not a percentage or widget reference", errors.ValueString(value))
}

// checkSiblingReference validates a reference supplied as a raw value to New.
func checkSiblingReference(value any) (Reference, error) {
	switch v := value.(type) {
	case Reference:
		if v.kind == RefSelector && !IsSelector(v.selector) {
			return Reference{}, invalid("constraint.New", errors.KindReference,
				"Invalid sibling selector %s", errors.ValueString(v.selector))
		}
		return v, nil
	case Percent:
		return PercentRef(v), nil
	case string:
		if !IsSelector(v) {
			return Reference{}, invalid("constraint.New", errors.KindReference,
				"Invalid sibling selector %s", errors.ValueString(v))
		}
		return Reference{kind: RefSelector, selector: v}, nil
	case Identifiable:
		if v != nil {
			return WidgetRef(v), nil
		}
	}
	return Reference{}, invalid("constraint.New", errors.KindReference,
		"Invalid constraint reference %s", errors.ValueString(value))
}
