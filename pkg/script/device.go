package script

import (
	"slices"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/device"
	"github.com/go-drift/tether/pkg/object"
)

// deviceHandle is the script side of the device: read-only property
// getters plus on, off and dispose.
type deviceHandle struct {
	d         *device.Device
	obj       *goja.Object
	listeners []jsListener
}

// deviceValue returns tether.device, creating the native object on first
// access.
func (r *Runtime) deviceValue(goja.FunctionCall) goja.Value {
	if r.device != nil {
		return r.device.obj
	}
	d, err := r.engine.Device()
	if err != nil {
		r.throw(err)
	}
	h := &deviceHandle{d: d, obj: r.vm.NewObject()}
	for _, name := range device.Properties.Names() {
		getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
			v, err := d.Get(name)
			if err != nil {
				r.throw(err)
			}
			return r.toJS(v)
		})
		if err := h.obj.DefineAccessorProperty(name, getter, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			r.logger.Error("failed to define device property", zap.String("name", name), zap.Error(err))
		}
	}
	r.put(h.obj, "cid", d.CID())
	r.put(h.obj, "on", func(call goja.FunctionCall) goja.Value { return r.deviceOn(h, call) })
	r.put(h.obj, "off", func(call goja.FunctionCall) goja.Value { return r.deviceOff(h, call) })
	r.put(h.obj, "dispose", func(goja.FunctionCall) goja.Value {
		panic(r.vm.NewGoError(d.Dispose()))
	})
	r.device = h
	return h.obj
}

func (r *Runtime) deviceOn(h *deviceHandle, call goja.FunctionCall) goja.Value {
	event := call.Argument(0).String()
	fnValue := call.Argument(1)
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		panic(r.vm.NewTypeError("on: listener must be a function"))
	}
	l, err := h.d.On(event, func(e object.Event) any {
		ev := r.vm.NewObject()
		r.put(ev, "type", e.Type)
		r.put(ev, "target", h.obj)
		r.put(ev, "data", r.toJS(e.Data))
		res, err := fn(h.obj, ev)
		if err != nil {
			r.logger.Warn("listener failed", zap.String("target", h.d.CID()), zap.String("event", event), zap.Error(err))
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

func (r *Runtime) deviceOff(h *deviceHandle, call goja.FunctionCall) goja.Value {
	event := call.Argument(0).String()
	fn := call.Argument(1)
	all := goja.IsUndefined(fn)
	h.listeners = slices.DeleteFunc(h.listeners, func(jl jsListener) bool {
		if jl.event != event || (!all && !jl.fn.SameAs(fn)) {
			return false
		}
		h.d.Off(jl.l)
		return true
	})
	return h.obj
}
