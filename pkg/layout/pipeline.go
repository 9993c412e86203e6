package layout

import (
	"slices"

	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
)

// Node is a widget as seen by a layout: its identity, layout data, selector
// matching, intrinsic size and the bounds last assigned to it. Bounds are
// relative to the parent.
type Node interface {
	CID() string
	TypeName() string
	LayoutData() Data
	Matches(selector string) bool
	IntrinsicSize(maxWidth float64) graphics.Size
	Bounds() graphics.Rect
	SetBounds(r graphics.Rect)
}

// Container is a node whose children are positioned by a Layout.
type Container interface {
	Node
	Children() []Node
	// Layout returns the layout arranging the children. Nil disables
	// layout for this container.
	Layout() Layout
	// Depth is the distance from the root; the root has depth 0.
	Depth() int
}

// Layout arranges the children of a container within a size.
type Layout interface {
	// Arrange returns one placement per child, in child order. Problems
	// that still allow a result, such as a reference to a missing sibling,
	// are passed to report.
	Arrange(children []Node, size graphics.Size, report func(error)) []Placement
}

// Placement is the outcome of arranging one child.
type Placement struct {
	Node   Node
	Bounds graphics.Rect
	// Resolved is the layout data with references resolved to cids, as sent
	// to native code. Nil sends nothing.
	Resolved map[string]any
}

// Sink receives the native property updates a layout pass produces.
// *bridge.NativeBridge implements it.
type Sink interface {
	Set(id, name string, value any)
}

// Queue tracks containers whose children need to be arranged and runs the
// layout pass, typically right before the bridge flushes.
type Queue struct {
	dirty    []Container
	dirtySet map[Container]bool
	sink     Sink
	logger   *zap.Logger

	// EmitBounds also sends the computed "bounds" of each child.
	EmitBounds bool

	sent map[string]string // cid -> last layoutData rendition sent
}

// NewQueue returns a queue sending its output to sink.
func NewQueue(sink Sink) *Queue {
	return &Queue{
		sink:       sink,
		logger:     zap.NewNop(),
		EmitBounds: true,
		sent:       make(map[string]string),
	}
}

// SetLogger replaces the logger. Nil restores the no-op logger.
func (q *Queue) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	q.logger = l
}

// Add marks c as needing layout of its children.
func (q *Queue) Add(c Container) {
	if c == nil {
		return
	}
	if q.dirtySet == nil {
		q.dirtySet = make(map[Container]bool)
	}
	if q.dirtySet[c] {
		return
	}
	q.dirtySet[c] = true
	q.dirty = append(q.dirty, c)
}

// NeedsLayout reports whether any container is queued.
func (q *Queue) NeedsLayout() bool {
	return len(q.dirty) > 0
}

// Forget drops what the queue remembers about a disposed widget.
func (q *Queue) Forget(cid string) {
	delete(q.sent, cid)
}

// Flush arranges queued containers in depth order, parents first. Children
// whose size changed are containers themselves get queued in turn and are
// processed in the same pass.
func (q *Queue) Flush() {
	passes := 0
	for len(q.dirty) > 0 {
		slices.SortStableFunc(q.dirty, func(a, b Container) int {
			return a.Depth() - b.Depth()
		})

		// Take current batch and clear for next iteration
		dirty := q.dirty
		q.dirty = nil
		q.dirtySet = nil

		for _, c := range dirty {
			q.arrange(c)
		}
		passes++
	}
	if passes > 0 {
		q.logger.Debug("layout pass", zap.Int("iterations", passes))
	}
}

func (q *Queue) arrange(c Container) {
	l := c.Layout()
	if l == nil {
		return
	}
	report := func(err error) {
		var te *errors.TetherError
		if !errors.As(err, &te) {
			te = &errors.TetherError{Op: "layout.Arrange", Kind: errors.KindLayout, Err: err}
		}
		q.logger.Warn("layout reference unresolved",
			zap.String("parent", c.CID()),
			zap.String("target", te.Target),
			zap.Error(te.Err))
		errors.Report(te)
	}
	for _, p := range l.Arrange(c.Children(), c.Bounds().Size(), report) {
		q.apply(p)
	}
}

func (q *Queue) apply(p Placement) {
	cid := p.Node.CID()
	if p.Resolved != nil {
		rendition := errors.ValueString(p.Resolved)
		if q.sent[cid] != rendition {
			q.sent[cid] = rendition
			q.sink.Set(cid, "layoutData", p.Resolved)
		}
	}
	old := p.Node.Bounds()
	if old.Equal(p.Bounds) {
		return
	}
	p.Node.SetBounds(p.Bounds)
	if q.EmitBounds {
		q.sink.Set(cid, "bounds", p.Bounds.Bounds())
	}
	if child, ok := p.Node.(Container); ok && old.Size() != p.Bounds.Size() {
		q.Add(child)
	}
}
