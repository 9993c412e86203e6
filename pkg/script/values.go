package script

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/go-drift/tether/pkg/constraint"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/layout"
	"github.com/go-drift/tether/pkg/widget"
)

// maxValueDepth bounds the recursion of value conversion for cyclic
// script objects.
const maxValueDepth = 64

// export converts a script value to the Go shapes the property codecs and
// the constraint parser accept. Widget wrappers become the widget itself, so
// they can be used as layout references.
func (r *Runtime) export(v goja.Value) any {
	return r.exportDepth(v, 0)
}

func (r *Runtime) exportDepth(v goja.Value, depth int) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	if w := r.unwrap(obj); w != nil {
		return w
	}
	if depth >= maxValueDepth {
		return nil
	}
	switch obj.ClassName() {
	case "Array":
		n := int(obj.Get("length").ToInteger())
		out := make([]any, n)
		for i := range out {
			out[i] = r.exportDepth(obj.Get(strconv.Itoa(i)), depth+1)
		}
		return out
	case "Object":
		out := make(map[string]any)
		for _, key := range obj.Keys() {
			out[key] = r.exportDepth(obj.Get(key), depth+1)
		}
		return out
	}
	return obj.Export()
}

// toJS converts a Go value returned by the widget layer to a script value.
func (r *Runtime) toJS(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case widget.Widget:
		return r.wrap(x)
	case graphics.Rect:
		return r.toJS(x.Bounds())
	case graphics.Size:
		return r.sizeValue(x)
	case layout.Data:
		return r.toJS(x.Map())
	case constraint.Constraint:
		return r.toJS(x.ToArray())
	case constraint.Reference:
		if w, ok := x.Widget(); ok {
			if ww, ok := w.(widget.Widget); ok {
				return r.wrap(ww)
			}
		}
		return r.vm.ToValue(x.String())
	case []any:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = r.toJS(item)
		}
		return r.vm.NewArray(items...)
	case map[string]any:
		obj := r.vm.NewObject()
		for key, item := range x {
			r.put(obj, key, r.toJS(item))
		}
		return obj
	}
	return r.vm.ToValue(v)
}

func (r *Runtime) sizeValue(s graphics.Size) *goja.Object {
	obj := r.vm.NewObject()
	r.put(obj, "width", s.Width)
	r.put(obj, "height", s.Height)
	return obj
}

// argMap exports an optional object argument.
func (r *Runtime) argMap(v goja.Value) (map[string]any, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, true
	}
	m, ok := r.export(v).(map[string]any)
	return m, ok
}
