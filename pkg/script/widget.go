package script

import (
	"fmt"
	"slices"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/object"
	"github.com/go-drift/tether/pkg/widget"
)

// widgetKey holds the Go widget on its wrapper. The property is hidden from
// enumeration so exporting a wrapper never walks into it.
const widgetKey = "__tether_widget__"

// handle is the script side of one widget: its wrapper object and the
// script listeners registered through it.
type handle struct {
	w         widget.Widget
	obj       *goja.Object
	listeners []jsListener
}

type jsListener struct {
	event string
	fn    goja.Value
	l     *object.Listener
}

// wrap returns the wrapper of w, creating it on first use. The same widget
// always yields the same wrapper while it is alive.
func (r *Runtime) wrap(w widget.Widget) goja.Value {
	if w == nil {
		return goja.Null()
	}
	if h, ok := r.handles[w.CID()]; ok {
		return h.obj
	}
	h := &handle{w: w, obj: r.vm.NewObject()}
	if err := h.obj.DefineDataProperty(widgetKey, r.vm.ToValue(w), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		r.logger.Error("failed to bind widget", zap.String("cid", w.CID()), zap.Error(err))
	}
	r.put(h.obj, "cid", w.CID())
	r.put(h.obj, "type", w.TypeName())

	r.defineMethods(h)
	w.Object().OnDispose(func() { delete(r.handles, w.CID()) })
	r.handles[w.CID()] = h
	return h.obj
}

// unwrap returns the widget behind a wrapper, or nil.
func (r *Runtime) unwrap(obj *goja.Object) widget.Widget {
	v := obj.Get(widgetKey)
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	w, _ := v.Export().(widget.Widget)
	return w
}

func (r *Runtime) unwrapValue(v goja.Value) widget.Widget {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return r.unwrap(obj)
}

// mustWidget unwraps an argument or throws a TypeError.
func (r *Runtime) mustWidget(method string, v goja.Value) widget.Widget {
	w := r.unwrapValue(v)
	if w == nil {
		panic(r.vm.NewTypeError(fmt.Sprintf("%s: %s is not a widget", method, v.String())))
	}
	return w
}

func (r *Runtime) defineMethods(h *handle) {
	o := h.obj
	r.put(o, "set", r.method(h, r.set))
	r.put(o, "get", r.method(h, r.get))
	r.put(o, "call", r.method(h, r.call))
	r.put(o, "on", r.method(h, r.on))
	r.put(o, "off", r.method(h, r.off))
	r.put(o, "trigger", r.method(h, r.trigger))
	r.put(o, "detach", r.method(h, r.detach))
	r.put(o, "dispose", r.method(h, r.dispose))
	r.put(o, "isDisposed", r.method(h, func(h *handle, _ goja.FunctionCall) goja.Value {
		return r.vm.ToValue(h.w.Object().IsDisposed())
	}))
	r.put(o, "parent", r.method(h, func(h *handle, _ goja.FunctionCall) goja.Value {
		if p := h.w.Parent(); p != nil {
			return r.wrap(composite(p))
		}
		return goja.Null()
	}))

	if _, ok := h.w.(container); ok {
		r.put(o, "append", r.method(h, r.append))
		r.put(o, "children", r.method(h, r.children))
		r.put(o, "find", r.method(h, r.find))
		r.put(o, "apply", r.method(h, r.apply))
	}
}

// container is the composite side of a widget.
type container interface {
	widget.Widget
	Append(widgets ...widget.Widget) error
	Widgets(selector string) []widget.Widget
	Find(selector string) []widget.Widget
	Apply(rules map[string]map[string]any) error
}

// composite returns the concrete widget a parent composite belongs to, so
// the content view wraps as itself.
func composite(p *widget.Composite) widget.Widget {
	if w, ok := p.Object().Owner().(widget.Widget); ok {
		return w
	}
	return p
}

func (r *Runtime) method(h *handle, fn func(*handle, goja.FunctionCall) goja.Value) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		return fn(h, call)
	}
}

// set accepts set(name, value) and set({name: value, ...}).
func (r *Runtime) set(h *handle, call goja.FunctionCall) goja.Value {
	first := call.Argument(0)
	if obj, ok := first.(*goja.Object); ok && r.unwrap(obj) == nil && len(call.Arguments) == 1 {
		props, ok := r.export(obj).(map[string]any)
		if !ok {
			panic(r.vm.NewTypeError("set: properties must be an object"))
		}
		if err := h.w.SetAll(props); err != nil {
			r.throw(err)
		}
		return h.obj
	}
	if err := h.w.Set(first.String(), r.export(call.Argument(1))); err != nil {
		r.throw(err)
	}
	return h.obj
}

func (r *Runtime) get(h *handle, call goja.FunctionCall) goja.Value {
	v, err := h.w.Get(call.Argument(0).String())
	if err != nil {
		r.throw(err)
	}
	return r.toJS(v)
}

func (r *Runtime) call(h *handle, call goja.FunctionCall) goja.Value {
	params, ok := r.argMap(call.Argument(1))
	if !ok {
		panic(r.vm.NewTypeError("call: parameters must be an object"))
	}
	v, err := h.w.Object().Call(call.Argument(0).String(), params)
	if err != nil {
		r.throw(err)
	}
	return r.toJS(v)
}

// on registers fn for event. The listener receives {type, target, data}
// with the wrapper as this; its return value is passed back to the
// notifying side.
func (r *Runtime) on(h *handle, call goja.FunctionCall) goja.Value {
	event := call.Argument(0).String()
	fnValue := call.Argument(1)
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		panic(r.vm.NewTypeError("on: listener must be a function"))
	}
	l, err := h.w.Object().On(event, func(e object.Event) any {
		ev := r.vm.NewObject()
		r.put(ev, "type", e.Type)
		r.put(ev, "target", h.obj)
		r.put(ev, "data", r.toJS(e.Data))
		res, err := fn(h.obj, ev)
		if err != nil {
			r.logger.Warn("listener failed", zap.String("target", h.w.CID()), zap.String("event", event), zap.Error(err))
			r.callbackFailed("listener", err)
			return nil
		}
		return r.export(res)
	})
	if err != nil {
		r.throw(err)
	}
	h.listeners = append(h.listeners, jsListener{event: event, fn: fnValue, l: l})
	return h.obj
}

// off removes the listeners registered with on for event and fn. Without
// fn, every script listener for event is removed.
func (r *Runtime) off(h *handle, call goja.FunctionCall) goja.Value {
	event := call.Argument(0).String()
	fn := call.Argument(1)
	all := goja.IsUndefined(fn)
	h.listeners = slices.DeleteFunc(h.listeners, func(jl jsListener) bool {
		if jl.event != event || (!all && !jl.fn.SameAs(fn)) {
			return false
		}
		h.w.Object().Off(jl.l)
		return true
	})
	return h.obj
}

func (r *Runtime) trigger(h *handle, call goja.FunctionCall) goja.Value {
	return r.toJS(h.w.Object().Trigger(call.Argument(0).String(), r.export(call.Argument(1))))
}

func (r *Runtime) detach(h *handle, _ goja.FunctionCall) goja.Value {
	if d, ok := h.w.(interface{ Detach() }); ok {
		d.Detach()
	}
	return h.obj
}

func (r *Runtime) dispose(h *handle, _ goja.FunctionCall) goja.Value {
	h.w.Dispose()
	h.listeners = nil
	return goja.Undefined()
}

func (r *Runtime) append(h *handle, call goja.FunctionCall) goja.Value {
	var children []widget.Widget
	for _, arg := range call.Arguments {
		if obj, ok := arg.(*goja.Object); ok && obj.ClassName() == "Array" {
			for _, item := range r.export(obj).([]any) {
				w, ok := item.(widget.Widget)
				if !ok {
					panic(r.vm.NewTypeError(fmt.Sprintf("append: %v is not a widget", item)))
				}
				children = append(children, w)
			}
			continue
		}
		children = append(children, r.mustWidget("append", arg))
	}
	if err := h.w.(container).Append(children...); err != nil {
		r.throw(err)
	}
	return h.obj
}

func (r *Runtime) children(h *handle, call goja.FunctionCall) goja.Value {
	selector := "*"
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		selector = arg.String()
	}
	return r.wrapAll(h.w.(container).Widgets(selector))
}

func (r *Runtime) find(h *handle, call goja.FunctionCall) goja.Value {
	selector := "*"
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		selector = arg.String()
	}
	return r.wrapAll(h.w.(container).Find(selector))
}

// apply takes {selector: {property: value}} and sets the properties on the
// matching descendants.
func (r *Runtime) apply(h *handle, call goja.FunctionCall) goja.Value {
	raw, ok := r.argMap(call.Argument(0))
	if !ok || raw == nil {
		panic(r.vm.NewTypeError("apply: rules must be an object"))
	}
	rules := make(map[string]map[string]any, len(raw))
	for sel, v := range raw {
		props, ok := v.(map[string]any)
		if !ok {
			panic(r.vm.NewTypeError(fmt.Sprintf("apply: properties for %q must be an object", sel)))
		}
		rules[sel] = props
	}
	if err := h.w.(container).Apply(rules); err != nil {
		r.throw(err)
	}
	return h.obj
}

func (r *Runtime) wrapAll(ws []widget.Widget) goja.Value {
	items := make([]any, len(ws))
	for i, w := range ws {
		items[i] = r.wrap(w)
	}
	return r.vm.NewArray(items...)
}
