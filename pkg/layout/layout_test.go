package layout

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/go-drift/tether/pkg/constraint"
	terrors "github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
)

// --- Test helpers ---

type testNode struct {
	cid       string
	id        string
	data      Data
	intrinsic graphics.Size
	bounds    graphics.Rect

	children []Node
	layout   Layout
	depth    int
}

func (n *testNode) CID() string      { return n.cid }
func (n *testNode) TypeName() string { return "Composite" }
func (n *testNode) LayoutData() Data { return n.data }
func (n *testNode) Matches(sel string) bool {
	return sel == "*" || sel == "#"+n.id || sel == "Composite"
}
func (n *testNode) IntrinsicSize(float64) graphics.Size { return n.intrinsic }
func (n *testNode) Bounds() graphics.Rect               { return n.bounds }
func (n *testNode) SetBounds(r graphics.Rect)           { n.bounds = r }
func (n *testNode) Children() []Node                    { return n.children }
func (n *testNode) Layout() Layout                      { return n.layout }
func (n *testNode) Depth() int                          { return n.depth }

type recordingSink struct {
	sets []string
	vals map[string]any
}

func (s *recordingSink) Set(id, name string, value any) {
	s.sets = append(s.sets, id+"."+name)
	if s.vals == nil {
		s.vals = make(map[string]any)
	}
	s.vals[id+"."+name] = value
}

func mustData(t *testing.T, v any) Data {
	t.Helper()
	d, err := DataFrom(v)
	if err != nil {
		t.Fatalf("DataFrom(%v): %v", v, err)
	}
	return d
}

func arrange(t *testing.T, size graphics.Size, nodes ...*testNode) ([]graphics.Rect, []error) {
	t.Helper()
	children := make([]Node, len(nodes))
	for i, n := range nodes {
		children[i] = n
	}
	var errs []error
	placements := ConstraintLayout{}.Arrange(children, size, func(err error) { errs = append(errs, err) })
	rects := make([]graphics.Rect, len(placements))
	for i, p := range placements {
		rects[i] = p.Bounds
	}
	return rects, errs
}

func rect(l, t, w, h float64) graphics.Rect {
	return graphics.RectFromLTWH(l, t, w, h)
}

// --- Data ---

func TestDataFromShorthands(t *testing.T) {
	zero := Anchor(constraint.Zero)
	tests := []struct {
		in   any
		want Data
	}{
		{"center", Data{CenterX: zero, CenterY: zero}},
		{"stretch", Data{Left: zero, Top: zero, Right: zero, Bottom: zero}},
		{"stretchX", Data{Left: zero, Right: zero}},
		{"stretchY", Data{Top: zero, Bottom: zero}},
		{nil, Data{}},
	}
	for _, tt := range tests {
		got := mustData(t, tt.in)
		if got.String() != tt.want.String() {
			t.Errorf("DataFrom(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDataFromMap(t *testing.T) {
	d := mustData(t, map[string]any{
		"left":   true,
		"top":    "prev() 10",
		"right":  "auto",
		"width":  100,
		"height": nil,
	})
	if d.Left == nil || !d.Left.Equal(constraint.Zero) {
		t.Errorf("left = %v", d.Left)
	}
	if d.Top == nil || d.Top.Reference().Kind() != constraint.RefPrev || d.Top.Offset() != 10 {
		t.Errorf("top = %v", d.Top)
	}
	if d.Right != nil || d.Height != nil {
		t.Error("auto attributes must stay unset")
	}
	if d.Width == nil || *d.Width != 100 {
		t.Errorf("width = %v", d.Width)
	}
	if got := d.String(); got != "{left: 0% 0, top: prev() 10, width: 100}" {
		t.Errorf("String = %q", got)
	}
}

func TestDataFromErrors(t *testing.T) {
	tests := []struct {
		in  any
		msg string
	}{
		{"middle", `Invalid layoutData "middle"`},
		{42, "Invalid layoutData 42"},
		{map[string]any{"width": -1}, "Invalid width -1"},
		{map[string]any{"height": "tall"}, `Invalid height "tall"`},
		{map[string]any{"foo": 1}, `Invalid layoutData property "foo"`},
		{map[string]any{"left": "#a b c"}, "Constraint array requires exactly 2 elements but has 3"},
	}
	for _, tt := range tests {
		_, err := DataFrom(tt.in)
		if err == nil {
			t.Errorf("DataFrom(%v) expected error", tt.in)
			continue
		}
		if !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("DataFrom(%v) = %q, want it to contain %q", tt.in, err.Error(), tt.msg)
		}
	}
}

func TestDataMerge(t *testing.T) {
	base := mustData(t, map[string]any{"left": 10, "width": 50})
	merged := base.Merge(mustData(t, map[string]any{"left": 20, "top": 5}))
	if merged.Left.Offset() != 20 || merged.Top.Offset() != 5 || *merged.Width != 50 {
		t.Errorf("Merge = %s", merged)
	}
	if base.Left.Offset() != 10 {
		t.Error("Merge must not modify the receiver")
	}
	m := merged.Map()
	if !reflect.DeepEqual(m["left"], []any{constraint.Zero.Reference(), 20.0}) {
		t.Errorf("Map left = %v", m["left"])
	}
}

// --- ConstraintLayout ---

func TestConstraintLayoutFixedBox(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"left": 10, "top": 10, "width": 100, "height": 50})}
	rects, errs := arrange(t, graphics.Size{Width: 300, Height: 200}, a)
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	if !rects[0].Equal(rect(10, 10, 100, 50)) {
		t.Errorf("bounds = %v", rects[0])
	}
}

func TestConstraintLayoutSiblingAndPercent(t *testing.T) {
	size := graphics.Size{Width: 300, Height: 200}
	a := &testNode{cid: "$1", id: "a", data: mustData(t, map[string]any{"left": 10, "top": 0, "width": 50, "height": 20})}
	b := &testNode{cid: "$2", data: mustData(t, map[string]any{"left": "prev() 10", "top": "#a 5", "width": 30, "height": 20})}
	c := &testNode{cid: "$3", data: mustData(t, map[string]any{"left": "50%", "right": "10%", "top": "25% 0", "bottom": "25%"})}
	d := &testNode{cid: "$4", data: mustData(t, map[string]any{"right": 20, "bottom": 10}), intrinsic: graphics.Size{Width: 40, Height: 15}}

	rects, errs := arrange(t, size, a, b, c, d)
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	want := []graphics.Rect{
		rect(10, 0, 50, 20),
		rect(70, 25, 30, 20),
		rect(150, 50, 120, 100),
		rect(240, 175, 40, 15),
	}
	for i := range want {
		if !rects[i].Equal(want[i]) {
			t.Errorf("child %d bounds = %v, want %v", i, rects[i], want[i])
		}
	}
}

func TestConstraintLayoutForwardReference(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"right": "next() 5", "width": 20, "height": 10})}
	b := &testNode{cid: "$2", data: mustData(t, map[string]any{"left": 100, "width": 20, "height": 10})}
	rects, errs := arrange(t, graphics.Size{Width: 300, Height: 200}, a, b)
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	if !rects[0].Equal(rect(75, 0, 20, 10)) {
		t.Errorf("bounds = %v", rects[0])
	}
}

func TestConstraintLayoutWidgetReference(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"top": 30, "height": 40, "width": 10})}
	b := &testNode{cid: "$2"}
	b.data = Data{Top: Anchor(constraint.MustFrom([]any{a, 2.0})), Height: Fixed(10), Width: Fixed(10)}
	rects, _ := arrange(t, graphics.Size{Width: 100, Height: 100}, a, b)
	if !rects[1].Equal(rect(0, 72, 10, 10)) {
		t.Errorf("bounds = %v", rects[1])
	}
}

func TestConstraintLayoutCenter(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"centerX": 0, "centerY": 10, "width": 100, "height": 50})}
	rects, _ := arrange(t, graphics.Size{Width: 300, Height: 200}, a)
	if !rects[0].Equal(rect(100, 85, 100, 50)) {
		t.Errorf("bounds = %v", rects[0])
	}
}

func TestConstraintLayoutIntrinsicSize(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"left": 5, "top": 5}), intrinsic: graphics.Size{Width: 42, Height: 17}}
	rects, _ := arrange(t, graphics.Size{Width: 300, Height: 200}, a)
	if !rects[0].Equal(rect(5, 5, 42, 17)) {
		t.Errorf("bounds = %v", rects[0])
	}
}

type baselineNode struct {
	testNode
	ascent float64
}

func (n *baselineNode) Baseline(float64) float64 { return n.ascent }

func TestConstraintLayoutBaseline(t *testing.T) {
	a := &baselineNode{testNode: testNode{cid: "$1", data: mustData(t, map[string]any{"top": 20, "height": 30, "width": 10})}, ascent: 24}
	b := &baselineNode{testNode: testNode{cid: "$2", data: mustData(t, map[string]any{"baseline": "prev()", "height": 12, "width": 10})}, ascent: 9}
	var errs []error
	p := ConstraintLayout{}.Arrange([]Node{a, b}, graphics.Size{Width: 100, Height: 100}, func(err error) { errs = append(errs, err) })
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	if got := p[1].Bounds.Top; got != 35 {
		t.Errorf("baseline top = %v, want 35", got)
	}
}

func TestConstraintLayoutUnresolvedReference(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"left": "#missing 10", "width": 10, "height": 10})}
	rects, errs := arrange(t, graphics.Size{Width: 100, Height: 100}, a)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	var te *terrors.TetherError
	if !errors.As(errs[0], &te) || te.Kind != terrors.KindLayout || te.Target != "$1" || te.Property != "left" {
		t.Errorf("error = %v", errs[0])
	}
	if !strings.Contains(errs[0].Error(), `Could not resolve left reference #missing of Composite[cid="$1"]`) {
		t.Errorf("message = %q", errs[0].Error())
	}
	if !rects[0].Equal(rect(10, 0, 10, 10)) {
		t.Errorf("unresolved reference should anchor to the parent edge, got %v", rects[0])
	}
}

func TestConstraintLayoutCycle(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"left": "next()", "width": 10, "height": 10})}
	b := &testNode{cid: "$2", data: mustData(t, map[string]any{"left": "prev()", "width": 10, "height": 10})}
	rects, errs := arrange(t, graphics.Size{Width: 100, Height: 100}, a, b)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "Circular left reference") {
		t.Fatalf("errs = %v", errs)
	}
	// b is computed while resolving a, so b's reference back to a is the
	// broken edge.
	if !rects[1].Equal(rect(0, 0, 10, 10)) || !rects[0].Equal(rect(10, 0, 10, 10)) {
		t.Errorf("bounds = %v", rects)
	}
}

func TestConstraintLayoutAxesAreIndependent(t *testing.T) {
	a := &testNode{cid: "$1", data: mustData(t, map[string]any{"left": "next()", "width": 10, "height": 10})}
	b := &testNode{cid: "$2", data: mustData(t, map[string]any{"top": "prev()", "width": 10, "height": 10})}
	_, errs := arrange(t, graphics.Size{Width: 100, Height: 100}, a, b)
	if len(errs) != 0 {
		t.Errorf("cross-axis references are not circular: %v", errs)
	}
}

func TestConstraintLayoutResolvedData(t *testing.T) {
	a := &testNode{cid: "$1", id: "a", data: mustData(t, map[string]any{"left": 10, "top": "50%", "width": 20, "height": 20})}
	b := &testNode{cid: "$2", data: mustData(t, map[string]any{"left": "#a 5", "centerY": 0, "height": 10})}
	p := ConstraintLayout{}.Arrange([]Node{a, b}, graphics.Size{Width: 100, Height: 100}, nil)

	wantA := map[string]any{"left": []any{0.0, 10.0}, "top": []any{50.0, 0.0}, "width": 20.0, "height": 20.0}
	if !reflect.DeepEqual(p[0].Resolved, wantA) {
		t.Errorf("resolved a = %v", p[0].Resolved)
	}
	wantB := map[string]any{"left": []any{"$1", 5.0}, "centerY": 0.0, "height": 10.0}
	if !reflect.DeepEqual(p[1].Resolved, wantB) {
		t.Errorf("resolved b = %v", p[1].Resolved)
	}
}

// --- StackLayout ---

func TestStackLayout(t *testing.T) {
	a := &testNode{cid: "$1", intrinsic: graphics.Size{Width: 40, Height: 20}}
	b := &testNode{cid: "$2", data: mustData(t, map[string]any{"top": 6, "height": 30}), intrinsic: graphics.Size{Width: 60, Height: 10}}
	c := &testNode{cid: "$3", data: mustData(t, map[string]any{"left": 5, "width": 50, "height": 10})}

	tests := []struct {
		align Alignment
		want  []graphics.Rect
	}{
		{AlignLeft, []graphics.Rect{rect(0, 0, 40, 20), rect(0, 34, 60, 30), rect(5, 72, 50, 10)}},
		{AlignCenterX, []graphics.Rect{rect(80, 0, 40, 20), rect(70, 34, 60, 30), rect(80, 72, 50, 10)}},
		{AlignRight, []graphics.Rect{rect(160, 0, 40, 20), rect(140, 34, 60, 30), rect(150, 72, 50, 10)}},
		{AlignStretchX, []graphics.Rect{rect(0, 0, 200, 20), rect(0, 34, 200, 30), rect(5, 72, 195, 10)}},
	}
	for _, tt := range tests {
		t.Run(string(tt.align), func(t *testing.T) {
			l := StackLayout{Spacing: 8, Alignment: tt.align}
			p := l.Arrange([]Node{a, b, c}, graphics.Size{Width: 200, Height: 300}, nil)
			for i := range tt.want {
				if !p[i].Bounds.Equal(tt.want[i]) {
					t.Errorf("child %d bounds = %v, want %v", i, p[i].Bounds, tt.want[i])
				}
			}
			if got := p[1].Resolved["top"]; !reflect.DeepEqual(got, []any{"$1", 14.0}) {
				t.Errorf("resolved top = %v", got)
			}
		})
	}

	if _, err := ParseAlignment("middle"); err == nil {
		t.Error("expected error for unknown alignment")
	}
}

// --- Queue ---

func TestQueueFlushEmitsOncePerChange(t *testing.T) {
	sink := &recordingSink{}
	child := &testNode{cid: "$2", data: mustData(t, map[string]any{"left": 10, "top": 10, "width": 100, "height": 50}), layout: DefaultLayout, depth: 1}
	root := &testNode{cid: "$1", bounds: rect(0, 0, 300, 200), layout: DefaultLayout, children: []Node{child}}
	grandchild := &testNode{cid: "$3", data: mustData(t, "stretch"), depth: 2}
	child.children = []Node{grandchild}

	q := NewQueue(sink)
	q.Add(root)
	q.Add(root)
	if !q.NeedsLayout() {
		t.Fatal("expected queued layout")
	}
	q.Flush()
	if q.NeedsLayout() {
		t.Error("queue not drained")
	}

	want := []string{"$2.layoutData", "$2.bounds", "$3.layoutData", "$3.bounds"}
	if !reflect.DeepEqual(sink.sets, want) {
		t.Errorf("sets = %v, want %v", sink.sets, want)
	}
	if got := sink.vals["$3.bounds"]; !reflect.DeepEqual(got, []any{0.0, 0.0, 100.0, 50.0}) {
		t.Errorf("grandchild bounds = %v", got)
	}

	sink.sets = nil
	q.Add(root)
	q.Flush()
	if len(sink.sets) != 0 {
		t.Errorf("unchanged layout emitted %v", sink.sets)
	}

	child.data = mustData(t, map[string]any{"left": 20, "top": 10, "width": 100, "height": 50})
	q.Add(root)
	q.Flush()
	if want := []string{"$2.layoutData", "$2.bounds"}; !reflect.DeepEqual(sink.sets, want) {
		t.Errorf("move emitted %v, want %v (no relayout of an unresized child)", sink.sets, want)
	}
}

func TestQueueParentsFirst(t *testing.T) {
	sink := &recordingSink{}
	child := &testNode{cid: "$2", data: mustData(t, "stretch"), layout: DefaultLayout, depth: 1}
	grandchild := &testNode{cid: "$3", data: mustData(t, "stretch"), depth: 2}
	child.children = []Node{grandchild}
	root := &testNode{cid: "$1", bounds: rect(0, 0, 100, 100), layout: DefaultLayout, children: []Node{child}}

	q := NewQueue(sink)
	q.EmitBounds = false
	q.Add(child)
	q.Add(root)
	q.Flush()

	if got := grandchild.bounds; !got.Equal(rect(0, 0, 100, 100)) {
		t.Errorf("grandchild bounds = %v", got)
	}
	for _, s := range sink.sets {
		if strings.HasSuffix(s, ".bounds") {
			t.Errorf("bounds emitted with EmitBounds off: %s", s)
		}
	}
}

func TestQueueReportsLayoutErrors(t *testing.T) {
	h := &captureHandler{}
	terrors.SetHandler(h)
	t.Cleanup(func() { terrors.SetHandler(nil) })

	child := &testNode{cid: "$2", data: mustData(t, map[string]any{"left": "#nope"})}
	root := &testNode{cid: "$1", bounds: rect(0, 0, 100, 100), layout: DefaultLayout, children: []Node{child}}
	q := NewQueue(&recordingSink{})
	q.Add(root)
	q.Flush()

	if len(h.errs) != 1 || h.errs[0].Kind != terrors.KindLayout {
		t.Errorf("reported = %v", h.errs)
	}
}

type captureHandler struct {
	errs []*terrors.TetherError
}

func (h *captureHandler) HandleError(err *terrors.TetherError) { h.errs = append(h.errs, err) }
func (h *captureHandler) HandlePanic(*terrors.PanicError)      {}
