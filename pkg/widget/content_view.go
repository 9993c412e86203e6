package widget

import (
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/internal/convert"
	"github.com/go-drift/tether/pkg/object"
)

// ContentView is the root composite. Its bounds come from native "resize"
// notifications rather than from a parent layout.
type ContentView struct {
	Composite
}

// NewContentView creates the root composite of t with the given initial
// size and makes it the tree root.
func NewContentView(t *Tree, size graphics.Size, props map[string]any) (*ContentView, error) {
	cv := &ContentView{}
	cv.layout = t.defaultLayout()
	if err := cv.initComposite(t, cv, TypeContentView, "ContentView", props); err != nil {
		return nil, err
	}
	cv.bounds = graphics.RectFromLTWH(0, 0, size.Width, size.Height)
	if _, err := cv.On("resize", cv.onResize); err != nil {
		return nil, err
	}
	t.root = cv
	return cv, nil
}

// Depth implements layout.Container.
func (cv *ContentView) Depth() int { return 0 }

// Resize sets the size of the root and queues it for layout.
func (cv *ContentView) Resize(size graphics.Size) {
	if cv.IsDisposed() {
		return
	}
	r := graphics.RectFromLTWH(cv.bounds.Left, cv.bounds.Top, size.Width, size.Height)
	if r.Equal(cv.bounds) {
		return
	}
	cv.bounds = r
	cv.tree.queue.Add(cv)
}

// onResize handles the native notification, which carries either
// {width, height} or [left, top, width, height]. It runs before listeners
// registered later, so those observe the new bounds.
func (cv *ContentView) onResize(e object.Event) any {
	if m, ok := convert.ToMap(e.Data); ok {
		w, okW := convert.ToFloat64(m["width"])
		h, okH := convert.ToFloat64(m["height"])
		if okW && okH {
			cv.Resize(graphics.Size{Width: w, Height: h})
		}
		return nil
	}
	if arr, ok := convert.ToSlice(e.Data); ok {
		nums := make([]float64, 0, len(arr))
		for _, v := range arr {
			if f, ok := convert.ToFloat64(v); ok {
				nums = append(nums, f)
			}
		}
		if r, ok := graphics.RectFromBounds(nums); ok {
			cv.Resize(r.Size())
		}
	}
	return nil
}

// SetBounds is ignored for the root.
func (cv *ContentView) SetBounds(graphics.Rect) {}
