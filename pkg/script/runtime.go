// Package script exposes the widget tree of an engine to JavaScript.
//
// A Runtime owns one goja VM bound to one engine. Scripts see a global
// tether object:
//
//	const label = tether.create("TextView", {text: "Hello", layoutData: "center"});
//	tether.contentView.append(label);
//	label.on("resize", e => console.log(e.data.width));
//	tether.flush();
//
// The VM is not safe for concurrent use. Everything here, including timer
// callbacks, runs on the engine loop.
package script

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-drift/tether/pkg/engine"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/platform"
)

// Version is reported to scripts as tether.version.
const Version = "1.2.0"

// Runtime runs scripts against an engine.
type Runtime struct {
	vm     *goja.Runtime
	engine *engine.Engine
	logger *zap.Logger

	handles map[string]*handle
	device  *deviceHandle

	timerMu sync.Mutex
	timers  map[int64]*time.Timer
	nextID  int64
	pending atomic.Int32
}

// New returns a runtime bound to e, logging through e's logger.
func New(e *engine.Engine) *Runtime {
	r := &Runtime{
		vm:      goja.New(),
		engine:  e,
		logger:  e.Logger().Named("script"),
		handles: make(map[string]*handle),
		timers:  make(map[int64]*time.Timer),
	}
	r.initRuntime()
	return r
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// Run evaluates src. Must be called on the engine loop. A thrown exception
// is returned as the error.
func (r *Runtime) Run(name, src string) (any, error) {
	v, err := r.vm.RunScript(name, src)
	if err != nil {
		return nil, &errors.TetherError{Op: "script.Run", Kind: errors.KindInput, Target: name, Err: err}
	}
	return r.export(v), nil
}

// Interrupt aborts the running script with reason. Safe for concurrent use.
func (r *Runtime) Interrupt(reason any) {
	r.vm.Interrupt(reason)
}

// PendingTimers returns the number of scheduled timers that have not fired
// or been cleared. Safe for concurrent use.
func (r *Runtime) PendingTimers() int {
	return int(r.pending.Load())
}

// Close cancels all pending timers.
func (r *Runtime) Close() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
		r.pending.Add(-1)
	}
}

func (r *Runtime) initRuntime() {
	global := r.vm.GlobalObject()
	if err := global.Set("tether", r.newTether()); err != nil {
		r.logger.Error("failed to set 'tether' global", zap.Error(err))
	}
	r.initConsole()
	r.initTimers()
}

func (r *Runtime) newTether() *goja.Object {
	t := r.vm.NewObject()
	r.put(t, "version", Version)
	r.put(t, "create", r.create)
	r.put(t, "flush", r.flush)
	r.put(t, "measureTexts", r.measureTexts)
	r.put(t, "notify", r.notify)
	r.put(t, "types", r.types)
	getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return r.wrap(r.engine.Root())
	})
	if err := t.DefineAccessorProperty("contentView", getter, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		r.logger.Error("failed to define contentView", zap.Error(err))
	}
	if err := t.DefineAccessorProperty("device", r.vm.ToValue(r.deviceValue), goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		r.logger.Error("failed to define device", zap.Error(err))
	}
	return t
}

// put sets obj[name], logging a failure instead of dropping it.
func (r *Runtime) put(obj *goja.Object, name string, v any) {
	if err := obj.Set(name, v); err != nil {
		r.logger.Error("failed to set property", zap.String("name", name), zap.Error(err))
	}
}

// throw raises err as a script exception.
func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) create(call goja.FunctionCall) goja.Value {
	typeName := call.Argument(0)
	if goja.IsUndefined(typeName) {
		panic(r.vm.NewTypeError("create: widget type required"))
	}
	props, ok := r.argMap(call.Argument(1))
	if !ok {
		panic(r.vm.NewTypeError("create: properties must be an object"))
	}
	w, err := r.engine.Tree().Create(typeName.String(), props)
	if err != nil {
		r.throw(err)
	}
	return r.wrap(w)
}

func (r *Runtime) flush(goja.FunctionCall) goja.Value {
	if err := r.engine.Flush(); err != nil {
		r.throw(err)
	}
	return goja.Undefined()
}

func (r *Runtime) types(goja.FunctionCall) goja.Value {
	names := r.engine.Tree().Types()
	items := make([]any, len(names))
	for i, name := range names {
		items[i] = name
	}
	return r.vm.NewArray(items...)
}

// measureTexts accepts an array of {text, font, markupEnabled, maxWidth}
// configurations and returns one {width, height} per entry.
func (r *Runtime) measureTexts(call goja.FunctionCall) goja.Value {
	args := make([]any, len(call.Arguments))
	for i, a := range call.Arguments {
		args[i] = r.export(a)
	}
	sizes, err := r.engine.Tree().Measurer().MeasureTexts(args...)
	if err != nil {
		r.throw(err)
	}
	out := make([]any, len(sizes))
	for i, s := range sizes {
		out[i] = r.sizeValue(s)
	}
	return r.vm.NewArray(out...)
}

// notify simulates a native notification. It is delivered after the
// current task, like a real one.
func (r *Runtime) notify(call goja.FunctionCall) goja.Value {
	target := call.Argument(0)
	if w := r.unwrapValue(target); w != nil {
		target = r.vm.ToValue(w.CID())
	}
	event := call.Argument(1).String()
	if goja.IsUndefined(target) || event == "" {
		panic(r.vm.NewTypeError("notify: target and event required"))
	}
	r.engine.Notify(platform.Notification{
		Target: target.String(),
		Event:  event,
		Data:   r.export(call.Argument(2)),
	})
	return goja.Undefined()
}

// initConsole routes console output to the logger.
func (r *Runtime) initConsole() {
	console := r.vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = r.format(arg)
			}
			r.logger.Log(level, "console", zap.String("message", strings.Join(args, " ")))
			return goja.Undefined()
		}
	}

	r.put(console, "log", logFunc(zap.InfoLevel))
	r.put(console, "info", logFunc(zap.InfoLevel))
	r.put(console, "warn", logFunc(zap.WarnLevel))
	r.put(console, "error", logFunc(zap.ErrorLevel))
	r.put(console, "debug", logFunc(zap.DebugLevel))

	r.put(r.vm.GlobalObject(), "console", console)
}

// format renders objects with JSON.stringify when possible.
func (r *Runtime) format(arg goja.Value) string {
	if w := r.unwrapValue(arg); w != nil {
		return fmt.Sprintf("%s[cid=%q]", w.TypeName(), w.CID())
	}
	if _, ok := arg.(*goja.Object); ok {
		if jsJSON := r.vm.Get("JSON"); jsJSON != nil && !goja.IsUndefined(jsJSON) {
			if stringify, ok := goja.AssertFunction(jsJSON.ToObject(r.vm).Get("stringify")); ok {
				if result, err := stringify(goja.Undefined(), arg); err == nil && !goja.IsUndefined(result) {
					return result.String()
				}
			}
		}
	}
	return arg.String()
}

// initTimers implements setTimeout and clearTimeout on top of the engine
// loop: a timer posts its callback as a task when it fires.
func (r *Runtime) initTimers() {
	setTimeout := func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(r.vm.NewTypeError("setTimeout: callback must be a function"))
		}
		delay := time.Duration(max(call.Argument(1).ToInteger(), 0)) * time.Millisecond
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = call.Arguments[2:]
		}

		r.timerMu.Lock()
		r.nextID++
		id := r.nextID
		r.pending.Add(1)
		r.timers[id] = time.AfterFunc(delay, func() {
			r.engine.Post(func() { r.fire(id, fn, args) })
		})
		r.timerMu.Unlock()
		return r.vm.ToValue(id)
	}

	clearTimeout := func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()
		r.timerMu.Lock()
		defer r.timerMu.Unlock()
		if t, ok := r.timers[id]; ok {
			t.Stop()
			delete(r.timers, id)
			r.pending.Add(-1)
		}
		return goja.Undefined()
	}

	r.put(r.vm.GlobalObject(), "setTimeout", setTimeout)
	r.put(r.vm.GlobalObject(), "clearTimeout", clearTimeout)
}

// fire runs a timer callback on the loop unless it was cleared after the
// timer posted it.
func (r *Runtime) fire(id int64, fn goja.Callable, args []goja.Value) {
	r.timerMu.Lock()
	_, live := r.timers[id]
	delete(r.timers, id)
	r.timerMu.Unlock()
	if !live {
		return
	}
	defer r.pending.Add(-1)
	if _, err := fn(goja.Undefined(), args...); err != nil {
		r.callbackFailed("setTimeout", err)
	}
}

// callbackFailed reports an exception thrown by a callback invoked from Go,
// where there is no script frame to propagate it to.
func (r *Runtime) callbackFailed(op string, err error) {
	r.logger.Warn("script callback failed", zap.String("op", op), zap.Error(err))
	errors.Report(&errors.TetherError{Op: "script." + op, Kind: errors.KindInput, Err: err})
}
