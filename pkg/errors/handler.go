package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// handlerBox lets the handler interface live in an atomic.Pointer.
type handlerBox struct{ h ErrorHandler }

var current atomic.Pointer[handlerBox]

func init() {
	current.Store(&handlerBox{h: &LogHandler{}})
}

// SetHandler installs the process-wide error handler. Nil restores a
// non-verbose LogHandler on stderr.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	current.Store(&handlerBox{h: h})
}

// Handler returns the installed error handler.
func Handler() ErrorHandler {
	return current.Load().h
}

// Report stamps err and hands it to the installed handler.
func Report(err *TetherError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportPanic stamps err and hands it to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// Recover reports a panic in progress as a PanicError for op and stops it.
// It must be deferred directly:
//
//	defer errors.Recover("engine.Task")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(panicError(op, r))
	}
}

// RecoverWithCallback is Recover followed by callback(r), for callers that
// must clean up after a recovered panic.
func RecoverWithCallback(op string, callback func(r any)) {
	r := recover()
	if r == nil {
		return
	}
	ReportPanic(panicError(op, r))
	if callback != nil {
		callback(r)
	}
}

func panicError(op string, r any) *PanicError {
	// Skip runtime.Callers, stack, panicError and the Recover variant.
	return &PanicError{Op: op, Value: r, StackTrace: stack(4), Timestamp: time.Now()}
}

// CaptureStack returns the stack starting at its caller, one
// "function\n\tfile:line" entry per frame.
func CaptureStack() string {
	return stack(3)
}

func stack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for more := true; more; {
		var frame runtime.Frame
		frame, more = frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
	}
	return sb.String()
}
