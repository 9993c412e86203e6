package constraint

import (
	"math"
	"strings"
	"testing"

	"github.com/go-drift/tether/pkg/errors"
)

type fakeWidget struct{ cid string }

func (w *fakeWidget) CID() string      { return w.cid }
func (w *fakeWidget) TypeName() string { return "Composite" }

func TestFrom_ZeroShorthands(t *testing.T) {
	for _, in := range []any{0, 0.0, true, "0", int64(0)} {
		c, err := From(in)
		if err != nil {
			t.Fatalf("From(%#v) error: %v", in, err)
		}
		if !c.Equal(Zero) {
			t.Errorf("From(%#v) = %v, want %v", in, c, Zero)
		}
	}
	if !Zero.Reference().IsZero() || Zero.Offset() != 0 {
		t.Errorf("Zero = %v, want 0%% 0", Zero)
	}
}

func TestFrom_Shapes(t *testing.T) {
	widget := &fakeWidget{cid: "$7"}
	half := MustPercent(50)
	tests := []struct {
		name   string
		in     any
		ref    Reference
		offset float64
	}{
		{"number", 16, PercentRef(Percent{}), 16},
		{"negative number", -4.5, PercentRef(Percent{}), -4.5},
		{"number string", " 12 ", PercentRef(Percent{}), 12},
		{"decimal string", ".5", PercentRef(Percent{}), 0.5},
		{"percent and offset", "50% 10", PercentRef(half), 10},
		{"percent and offset extra spaces", "  50%   10 ", PercentRef(half), 10},
		{"percent only", "50%", PercentRef(half), 0},
		{"array", []any{half, 10}, PercentRef(half), 10},
		{"pair array", [2]any{half, 10}, PercentRef(half), 10},
		{"pair array of strings", [2]any{"#foo", "-3"}, mustSelector(t, "#foo"), -3},
		{"array of strings", []any{"50%", "10"}, PercentRef(half), 10},
		{"selector id", "#header", mustSelector(t, "#header"), 0},
		{"selector class pair", ".item 8", mustSelector(t, ".item"), 8},
		{"selector type", "TextView", mustSelector(t, "TextView"), 0},
		{"selector star", "* 2", mustSelector(t, "*"), 2},
		{"prev", "prev()", Prev, 0},
		{"next with offset", "next() 4", Next, 4},
		{"prev sentinel value", Prev, Prev, 0},
		{"widget", widget, WidgetRef(widget), 0},
		{"widget array", []any{widget, 3}, WidgetRef(widget), 3},
		{"percent value", half, PercentRef(half), 0},
		{"percent-like map", map[string]any{"percent": 50.0}, PercentRef(half), 0},
		{"object", map[string]any{"reference": "#foo", "offset": 5.0}, mustSelector(t, "#foo"), 5},
		{"object offset only", map[string]any{"offset": 5.0}, PercentRef(Percent{}), 5},
		{"object reference only", map[string]any{"reference": half}, PercentRef(half), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := From(tt.in)
			if err != nil {
				t.Fatalf("From(%#v) error: %v", tt.in, err)
			}
			if !c.Reference().Equal(tt.ref) {
				t.Errorf("reference = %v, want %v", c.Reference(), tt.ref)
			}
			if c.Offset() != tt.offset {
				t.Errorf("offset = %v, want %v", c.Offset(), tt.offset)
			}
		})
	}
}

func TestFrom_StringAndArrayAgree(t *testing.T) {
	a := MustFrom("50% 10")
	b := MustFrom([]any{MustPercent(50), 10})
	if !a.Equal(b) {
		t.Errorf("%v != %v", a, b)
	}
}

func TestFrom_Errors(t *testing.T) {
	tests := []struct {
		in   any
		kind errors.Kind
		msg  string
	}{
		{"not a constraint", errors.KindInput, "Constraint array requires exactly 2 elements but has 3"},
		{[]any{"50%"}, errors.KindInput, "Constraint array requires exactly 2 elements but has 1"},
		{"foo", errors.KindReference, `"foo" is not a percentage or widget reference`},
		{"#", errors.KindReference, `"#" is not a percentage or widget reference`},
		{[]any{50, 10}, errors.KindReference, "50 is not a percentage or widget reference"},
		{"50% abc", errors.KindInput, `Invalid number "abc"`},
		{[]any{"50%", math.Inf(1)}, errors.KindInput, "Invalid number Infinity"},
		{false, errors.KindInput, "Invalid constraint false"},
		{nil, errors.KindInput, "Invalid constraint null"},
		{map[string]any{"foo": 1.0}, errors.KindInput, "Invalid constraint {foo: 1}"},
	}
	for _, tt := range tests {
		_, err := From(tt.in)
		if err == nil {
			t.Errorf("From(%#v) expected error", tt.in)
			continue
		}
		if got := Message(err); got != tt.msg {
			t.Errorf("From(%#v) message = %q, want %q", tt.in, got, tt.msg)
		}
		if errors.KindOf(err) != tt.kind {
			t.Errorf("From(%#v) kind = %v, want %v", tt.in, errors.KindOf(err), tt.kind)
		}
		if !errors.Is(err, errors.ErrInvalidConstraint) {
			t.Errorf("From(%#v) error should match ErrInvalidConstraint", tt.in)
		}
	}
}

func TestFrom_OnlySpaceSeparates(t *testing.T) {
	for _, in := range []string{"50%\t10", "50%\n10", "#foo\t5"} {
		_, err := From(in)
		if err == nil {
			t.Errorf("From(%q) expected error", in)
			continue
		}
		if errors.KindOf(err) != errors.KindReference {
			t.Errorf("From(%q) kind = %v, want reference", in, errors.KindOf(err))
		}
	}
	// Once a space is present, any whitespace run separates the pair.
	c, err := From("50% \t 10")
	if err != nil || c.Offset() != 10 {
		t.Errorf("From(mixed whitespace) = %v, %v", c, err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("lowercase", 0); err == nil || Message(err) != `Invalid sibling selector "lowercase"` {
		t.Errorf("New(lowercase) err = %v", err)
	}
	if _, err := New(42, 0); err == nil || !strings.HasPrefix(Message(err), "Invalid constraint reference") {
		t.Errorf("New(42) err = %v", err)
	}
	if _, err := New(MustPercent(10), "x"); err == nil || Message(err) != `Invalid number "x"` {
		t.Errorf("New(offset x) err = %v", err)
	}
	if _, err := New(MustPercent(10), math.NaN()); err == nil {
		t.Error("New with NaN offset should fail")
	}
	c, err := New("#foo", 3)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := c.Reference().Selector(); s != "#foo" {
		t.Errorf("selector = %q", s)
	}
}

func TestReferenceString(t *testing.T) {
	tests := []struct {
		ref  Reference
		want string
	}{
		{PercentRef(MustPercent(50)), "50%"},
		{Prev, "prev()"},
		{Next, "next()"},
		{mustSelector(t, ".row"), ".row"},
		{WidgetRef(&fakeWidget{cid: "$3"}), `Composite[cid="$3"]`},
	}
	for _, tt := range tests {
		if got := ReferenceString(tt.ref); got != tt.want {
			t.Errorf("ReferenceString = %q, want %q", got, tt.want)
		}
	}
	if got := MustFrom("prev()").Reference(); got.Kind() != RefPrev {
		t.Errorf("kind = %v, want prev", got.Kind())
	}
	if got := MustFrom("#foo 10").String(); got != "#foo 10" {
		t.Errorf("String() = %q", got)
	}
}

func TestToArrayRoundTrip(t *testing.T) {
	inputs := []any{
		0, 12, "50%", "50% 10", "#foo -3", "prev()", "next() 2.5",
		[]any{MustPercent(20), 4}, &fakeWidget{cid: "$9"},
		map[string]any{"reference": ".bar", "offset": 1.0},
	}
	for _, in := range inputs {
		c := MustFrom(in)
		back, err := From(c.ToArray())
		if err != nil {
			t.Fatalf("From(ToArray(%v)) error: %v", c, err)
		}
		if !back.Equal(c) {
			t.Errorf("round trip of %#v: got %v, want %v", in, back, c)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"42%", 42},
		{"42.7%", 42},
		{"-10%", -10},
		{"150%", 150},
		{map[string]any{"percent": 33.0}, 33},
		{MustPercent(12), 12},
	}
	for _, tt := range tests {
		p, err := PercentFrom(tt.in)
		if err != nil {
			t.Fatalf("PercentFrom(%#v) error: %v", tt.in, err)
		}
		if p.Value() != tt.want {
			t.Errorf("PercentFrom(%#v) = %v, want %v", tt.in, p.Value(), tt.want)
		}
	}
	if got := MustPercent(42).String(); got != "42%" {
		t.Errorf("String() = %q, want 42%%", got)
	}
	if got := MustPercent(25).Of(200); got != 50 {
		t.Errorf("Of(200) = %v, want 50", got)
	}

	bad := []struct {
		in  any
		msg string
	}{
		{"42", `Invalid percent string 42: It must be a number followed by "%".`},
		{"abc%", `Invalid percent string abc%: It must be a number followed by "%".`},
		{map[string]any{}, "Percent-like object missing percent value"},
		{12, "12 is not a valid PercentValue"},
	}
	for _, tt := range bad {
		_, err := PercentFrom(tt.in)
		if err == nil {
			t.Errorf("PercentFrom(%#v) expected error", tt.in)
			continue
		}
		if Message(err) != tt.msg {
			t.Errorf("PercentFrom(%#v) message = %q, want %q", tt.in, Message(err), tt.msg)
		}
	}
	if _, err := NewPercent(math.NaN()); err == nil {
		t.Error("NewPercent(NaN) should fail")
	}
}

func mustSelector(t *testing.T, s string) Reference {
	t.Helper()
	r, err := SelectorRef(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}
