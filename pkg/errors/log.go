package errors

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// LogHandler is an ErrorHandler that logs errors to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Out overrides the destination; nil means os.Stderr.
	Out io.Writer
}

func (h *LogHandler) out() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stderr
}

// HandleError logs a TetherError.
func (h *LogHandler) HandleError(err *TetherError) {
	if err == nil {
		return
	}
	w := h.out()
	if h.Verbose {
		fmt.Fprintf(w, "[tether error] %s [%s]", err.Op, err.Kind)
		if err.Target != "" {
			fmt.Fprintf(w, " target=%s", err.Target)
		}
		if err.Property != "" {
			fmt.Fprintf(w, " property=%s", err.Property)
		}
		fmt.Fprintf(w, ": %v\n", err.Err)
		if err.StackTrace != "" {
			fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
		}
	} else {
		fmt.Fprintf(w, "[tether error] %s: %v\n", err.Op, err.Err)
	}
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	w := h.out()
	if err.Op != "" {
		fmt.Fprintf(w, "[tether panic] %s: %v\n", err.Op, err.Value)
	} else {
		fmt.Fprintf(w, "[tether panic] %v\n", err.Value)
	}
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}

// ZapHandler is an ErrorHandler that writes reports to a zap logger.
type ZapHandler struct {
	Logger *zap.Logger
}

// NewZapHandler returns a handler logging to l. A nil logger discards.
func NewZapHandler(l *zap.Logger) *ZapHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapHandler{Logger: l}
}

// HandleError logs err at warn level for layout problems and error level
// for everything else.
func (h *ZapHandler) HandleError(err *TetherError) {
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("op", err.Op),
		zap.Stringer("kind", err.Kind),
		zap.Error(err.Err),
	}
	if err.Target != "" {
		fields = append(fields, zap.String("target", err.Target))
	}
	if err.Property != "" {
		fields = append(fields, zap.String("property", err.Property))
	}
	if err.Kind == KindLayout {
		h.Logger.Warn("layout reference unresolved", fields...)
		return
	}
	h.Logger.Error("tether error", fields...)
}

// HandlePanic logs a recovered panic with its stack.
func (h *ZapHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	h.Logger.Error("tether panic",
		zap.String("op", err.Op),
		zap.Any("value", err.Value),
		zap.String("stack", err.StackTrace),
	)
}
