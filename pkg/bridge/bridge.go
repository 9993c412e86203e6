// Package bridge queues native operations and drains them to a transport.
//
// Writes (create, set, listen, destroy) are never sent immediately. They are
// appended to an ordered operation log and delivered in one burst when a
// flush happens: explicitly, before any uncached Get, and before every Call.
// Consecutive set operations on the same identifier are merged into a single
// record while nothing else has been queued in between.
//
//	b := bridge.New(transport)
//	b.Create("$1", "tether.Composite", nil)
//	b.Set("$1", "background", []any{255, 0, 0, 255})
//	b.Set("$1", "opacity", 0.5) // merged into the create record
//	b.Listen("$1", "tap", true) // ends the merge
//	err := b.Flush()            // one create, one listen
package bridge

import (
	"maps"

	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/platform"
)

// NativeBridge is the operation batcher sitting in front of a transport.
// It is not safe for concurrent use; the engine loop owns it.
type NativeBridge struct {
	transport platform.Transport
	cache     *PropertyCache
	logger    *zap.Logger

	pending []platform.Operation
	// cursor indexes the record a following Set on the same id merges into,
	// or is -1 when the next Set must start a new record.
	cursor int

	hooks    []func()
	inHooks  bool
	stats    Stats
	flushing int
}

// Stats counts batcher activity since construction.
type Stats struct {
	Queued     int // records appended to the log
	Merged     int // sets folded into an existing record
	Flushes    int // flushes that delivered at least one record
	Sent       int // records delivered to the transport
	RoundTrips int // Get and Call requests that reached the transport
}

// New returns a batcher delivering to transport.
func New(transport platform.Transport) *NativeBridge {
	return &NativeBridge{
		transport: transport,
		cache:     NewPropertyCache(),
		logger:    zap.NewNop(),
		cursor:    -1,
	}
}

// SetLogger replaces the logger. Nil restores the no-op logger.
func (b *NativeBridge) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	b.logger = l
}

// Transport returns the underlying transport.
func (b *NativeBridge) Transport() platform.Transport {
	return b.transport
}

// Cache returns the property cache.
func (b *NativeBridge) Cache() *PropertyCache {
	return b.cache
}

// OnBeforeFlush registers fn to run at the start of every flush, before the
// queue is swapped out. Layout passes hook in here so geometry computed late
// still goes out in the same burst.
func (b *NativeBridge) OnBeforeFlush(fn func()) {
	b.hooks = append(b.hooks, fn)
}

// Create queues a create record. The properties map is copied; later Set
// calls on id merge into the record until another operation is queued.
func (b *NativeBridge) Create(id, typ string, properties map[string]any) {
	props := maps.Clone(properties)
	if props == nil {
		props = make(map[string]any)
	}
	b.push(platform.Operation{Op: platform.OpCreate, ID: id, Type: typ, Properties: props})
	b.cursor = len(b.pending) - 1
	for name, v := range props {
		b.cache.Store(id, name, v)
	}
}

// Set queues name=value for id, merging into the current record when it
// targets the same id. The value is cached either way.
func (b *NativeBridge) Set(id, name string, value any) {
	if b.cursor >= 0 && b.pending[b.cursor].ID == id {
		b.pending[b.cursor].Properties[name] = value
		b.stats.Merged++
	} else {
		b.push(platform.Operation{Op: platform.OpSet, ID: id, Properties: map[string]any{name: value}})
		b.cursor = len(b.pending) - 1
	}
	b.cache.Store(id, name, value)
}

// Listen queues a listen record and ends any pending merge.
func (b *NativeBridge) Listen(id, event string, listen bool) {
	b.push(platform.Operation{Op: platform.OpListen, ID: id, Event: event, Listen: listen})
	b.cursor = -1
}

// Destroy queues a destroy record, ends any pending merge and forgets the
// cached properties of id.
func (b *NativeBridge) Destroy(id string) {
	b.push(platform.Operation{Op: platform.OpDestroy, ID: id})
	b.cursor = -1
	b.cache.Forget(id)
}

// Get returns the cached value of (id, name), or flushes and reads it from
// the transport. A successful read is cached; a failed one is not.
func (b *NativeBridge) Get(id, name string) (any, error) {
	if v, ok := b.cache.Lookup(id, name); ok {
		return v, nil
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	b.stats.RoundTrips++
	v, err := b.transport.Get(id, name)
	if err != nil {
		return nil, &errors.TetherError{
			Op:       "bridge.Get",
			Kind:     errors.KindTransport,
			Target:   id,
			Property: name,
			Err:      err,
		}
	}
	b.cache.Store(id, name, v)
	return v, nil
}

// Call flushes, then invokes method on id. Calls are never cached.
func (b *NativeBridge) Call(id, method string, parameters map[string]any) (any, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	b.stats.RoundTrips++
	v, err := b.transport.Call(id, method, parameters)
	if err != nil {
		return nil, &errors.TetherError{
			Op:       "bridge.Call",
			Kind:     errors.KindTransport,
			Target:   id,
			Property: method,
			Err:      err,
		}
	}
	return v, nil
}

// Flush runs the before-flush hooks and delivers the queued records in
// order. Records queued while the transport is replaying stay queued for the
// next flush. An empty queue causes no transport traffic.
//
// Delivery stops at the first transport error; the records after it are
// dropped.
//
// Flush leaves the read cache alone. Invalidating it belongs to the owner of
// the flush cycle, which calls ClearCache before flushing at the end of a
// turn.
func (b *NativeBridge) Flush() error {
	b.runHooks()

	if len(b.pending) == 0 {
		return nil
	}
	ops := b.pending
	b.pending = nil
	b.cursor = -1
	b.stats.Flushes++
	b.flushing++
	defer func() { b.flushing-- }()

	if bt, ok := b.transport.(platform.BatchTransport); ok {
		if err := bt.Apply(ops); err != nil {
			b.logger.Error("bridge flush failed", zap.Int("operations", len(ops)), zap.Error(err))
			return &errors.TetherError{Op: "bridge.Flush", Kind: errors.KindTransport, Err: err}
		}
		b.stats.Sent += len(ops)
		b.logFlush(ops)
		return nil
	}

	for i, op := range ops {
		if err := op.ApplyTo(b.transport); err != nil {
			b.logger.Error("bridge flush failed",
				zap.String("op", string(op.Op)),
				zap.String("id", op.ID),
				zap.Int("dropped", len(ops)-i-1),
				zap.Error(err))
			return &errors.TetherError{
				Op:     "bridge.Flush",
				Kind:   errors.KindTransport,
				Target: op.ID,
				Err:    err,
			}
		}
		b.stats.Sent++
	}
	b.logFlush(ops)
	return nil
}

// ClearCache drops the whole property cache.
func (b *NativeBridge) ClearCache() {
	b.cache.Clear()
}

// Pending returns a copy of the queued records.
func (b *NativeBridge) Pending() []platform.Operation {
	out := make([]platform.Operation, len(b.pending))
	for i, op := range b.pending {
		out[i] = op.Clone()
	}
	return out
}

// Len returns the number of queued records.
func (b *NativeBridge) Len() int {
	return len(b.pending)
}

// Flushing reports whether a transport replay is in progress.
func (b *NativeBridge) Flushing() bool {
	return b.flushing > 0
}

// Stats returns the activity counters.
func (b *NativeBridge) Stats() Stats {
	return b.stats
}

func (b *NativeBridge) push(op platform.Operation) {
	b.pending = append(b.pending, op)
	b.stats.Queued++
}

// runHooks invokes the before-flush hooks. A flush issued from inside a hook
// (a layout pass reading a native value, for instance) skips the hooks.
func (b *NativeBridge) runHooks() {
	if b.inHooks {
		return
	}
	b.inHooks = true
	defer func() { b.inHooks = false }()
	for _, fn := range b.hooks {
		fn()
	}
}

func (b *NativeBridge) logFlush(ops []platform.Operation) {
	if ce := b.logger.Check(zap.DebugLevel, "bridge flush"); ce != nil {
		ce.Write(
			zap.Int("operations", len(ops)),
			zap.Int("queued", b.stats.Queued),
			zap.Int("merged", b.stats.Merged),
			zap.Int("flushes", b.stats.Flushes),
		)
	}
}
