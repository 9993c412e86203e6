// Package engine runs the tether object model on a single goroutine.
//
// An Engine owns the bridge, the object arena, the layout queue and the
// widget tree. None of those are safe for concurrent use, so everything that
// touches them runs as a task on the engine loop: native notifications
// arriving from other goroutines are posted, run to completion one at a
// time, and followed by an end-of-turn flush that lays out dirty composites
// and delivers the queued operations.
package engine

import (
	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/bridge"
	"github.com/go-drift/tether/pkg/device"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/layout"
	"github.com/go-drift/tether/pkg/measure"
	"github.com/go-drift/tether/pkg/object"
	"github.com/go-drift/tether/pkg/platform"
	"github.com/go-drift/tether/pkg/property"
	"github.com/go-drift/tether/pkg/widget"
)

// Options configure an Engine. The zero value is usable.
type Options struct {
	// Batch sends flush bursts through BatchTransport.Apply when the
	// transport supports it. When false, records are replayed one by one.
	Batch bool
	// FlushOnTurnEnd flushes the bridge after every task.
	FlushOnTurnEnd bool
	// EmitBounds also sends computed bounds next to resolved layout data.
	EmitBounds bool

	// Width and Height are the initial size of the content view.
	Width, Height float64
	// FontSize is the size of the default text font.
	FontSize float64

	// Faces resolves fonts for text measurement; nil uses the Go fonts.
	Faces  measure.FaceSource
	Logger *zap.Logger
}

// DefaultOptions returns the options used by the CLI when no config file
// is present.
func DefaultOptions() Options {
	return Options{
		Batch:          true,
		FlushOnTurnEnd: true,
		EmitBounds:     true,
		Width:          360,
		Height:         640,
		FontSize:       13,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Engine wires a transport to a widget tree rooted at a content view.
type Engine struct {
	*Loop

	opts     Options
	logger   *zap.Logger
	bridge   *bridge.NativeBridge
	ctx      *object.Context
	queue    *layout.Queue
	tree     *widget.Tree
	root     *widget.ContentView
	device   *device.Device
	debugSrv debugServer
}

// New creates an engine delivering to transport. The content view is
// created right away, so its create record is the first one flushed.
func New(transport platform.Transport, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	if _, ok := transport.(platform.BatchTransport); ok && !opts.Batch {
		transport = sequential{transport}
	}

	e := &Engine{opts: opts, logger: opts.Logger}
	e.Loop = NewLoop(e.endTurn)

	e.bridge = bridge.New(transport)
	e.bridge.SetLogger(e.logger.Named("bridge"))

	registry := property.NewRegistry()
	if err := widget.Register(registry); err != nil {
		return nil, err
	}
	device.Register(registry)
	e.ctx = object.NewContext(e.bridge, registry)
	e.ctx.SetLogger(e.logger.Named("object"))

	e.queue = layout.NewQueue(e.bridge)
	e.queue.EmitBounds = opts.EmitBounds
	e.queue.SetLogger(e.logger.Named("layout"))
	e.bridge.OnBeforeFlush(e.queue.Flush)

	m := measure.New(opts.Faces)
	m.SetLogger(e.logger.Named("measure"))
	e.tree = widget.NewTree(e.ctx, e.queue, m)
	e.tree.SetLogger(e.logger.Named("widget"))
	font := graphics.DefaultFont
	font.Size = opts.FontSize
	e.tree.SetFont(font)

	root, err := widget.NewContentView(e.tree, graphics.Size{Width: opts.Width, Height: opts.Height}, nil)
	if err != nil {
		return nil, err
	}
	e.root = root
	return e, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Bridge returns the operation batcher.
func (e *Engine) Bridge() *bridge.NativeBridge { return e.bridge }

// Context returns the object arena.
func (e *Engine) Context() *object.Context { return e.ctx }

// Tree returns the widget tree.
func (e *Engine) Tree() *widget.Tree { return e.tree }

// Root returns the content view.
func (e *Engine) Root() *widget.ContentView { return e.root }

// Device returns the device object, creating it on first use. Must be
// called on the loop.
func (e *Engine) Device() (*device.Device, error) {
	if e.device == nil {
		d, err := device.New(e.ctx)
		if err != nil {
			return nil, err
		}
		e.device = d
	}
	return e.device, nil
}

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// Flush drops the property cache, lays out dirty composites and delivers
// the queued records. Must be called on the loop.
func (e *Engine) Flush() error {
	e.bridge.ClearCache()
	return e.bridge.Flush()
}

// endTurn runs after every task.
func (e *Engine) endTurn() {
	if !e.opts.FlushOnTurnEnd {
		return
	}
	if e.bridge.Len() == 0 && !e.queue.NeedsLayout() {
		e.bridge.ClearCache()
		return
	}
	if err := e.Flush(); err != nil {
		report("engine.Flush", errors.KindTransport, err)
	}
}

// HandleNotification decodes an inbound {target, event, data} message and
// posts its delivery to the loop. Safe for concurrent use.
func (e *Engine) HandleNotification(data []byte) error {
	n, err := platform.DecodeNotification(data)
	if err != nil {
		return &errors.TetherError{Op: "engine.HandleNotification", Kind: errors.KindParsing, Err: err}
	}
	e.Notify(n)
	return nil
}

// Notify posts the delivery of a decoded notification to the loop. Safe
// for concurrent use.
func (e *Engine) Notify(n platform.Notification) {
	e.Post(func() { e.deliver(n) })
}

func (e *Engine) deliver(n platform.Notification) {
	if _, err := e.ctx.Notify(n.Target, n.Event, n.Data); err != nil {
		report("engine.Notify", errors.KindParsing, err)
	}
}

// report sends err to the global handler, keeping the kind of structured
// errors.
func report(op string, kind errors.Kind, err error) {
	var te *errors.TetherError
	if !errors.As(err, &te) {
		te = &errors.TetherError{Op: op, Kind: kind, Err: err}
	}
	errors.Report(te)
}

// sequential hides the BatchTransport side of a transport.
type sequential struct {
	platform.Transport
}
