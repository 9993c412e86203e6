package platform

import (
	"sync"
)

// RecordingTransport records every primitive it receives, in order. Get and
// Call are answered from Values and CallFunc. It is used by tests across
// the module in place of a native layer.
type RecordingTransport struct {
	mu    sync.Mutex
	calls []Operation

	// Values answers Get: Values[id][property].
	Values map[string]map[string]any
	// CallFunc answers Call. Nil answers nil.
	CallFunc func(id, method string, parameters map[string]any) (any, error)
	// Err, when set, is returned by every primitive.
	Err error
}

// NewRecordingTransport returns an empty recorder.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{Values: make(map[string]map[string]any)}
}

// SetValue stores the value a later Get(id, property) returns.
func (t *RecordingTransport) SetValue(id, property string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Values == nil {
		t.Values = make(map[string]map[string]any)
	}
	if t.Values[id] == nil {
		t.Values[id] = make(map[string]any)
	}
	t.Values[id][property] = value
}

func (t *RecordingTransport) Create(id, typ string, properties map[string]any) error {
	return t.record(Operation{Op: OpCreate, ID: id, Type: typ, Properties: properties})
}

func (t *RecordingTransport) Set(id string, properties map[string]any) error {
	return t.record(Operation{Op: OpSet, ID: id, Properties: properties})
}

func (t *RecordingTransport) Listen(id, event string, listen bool) error {
	return t.record(Operation{Op: OpListen, ID: id, Event: event, Listen: listen})
}

func (t *RecordingTransport) Destroy(id string) error {
	return t.record(Operation{Op: OpDestroy, ID: id})
}

func (t *RecordingTransport) Get(id, property string) (any, error) {
	if err := t.record(Operation{Op: OpGet, ID: id, Property: property}); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Values[id][property], nil
}

func (t *RecordingTransport) Call(id, method string, parameters map[string]any) (any, error) {
	if err := t.record(Operation{Op: OpCall, ID: id, Method: method, Parameters: parameters}); err != nil {
		return nil, err
	}
	if t.CallFunc == nil {
		return nil, nil
	}
	return t.CallFunc(id, method, parameters)
}

func (t *RecordingTransport) record(op Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, op.Clone())
	return t.Err
}

// Calls returns the recorded operations matching filter. Zero-valued filter
// fields match anything, so Calls(Operation{}) returns every call.
func (t *RecordingTransport) Calls(filter Operation) []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	var result []Operation
	for _, c := range t.calls {
		if filter.Op != "" && c.Op != filter.Op {
			continue
		}
		if filter.ID != "" && c.ID != filter.ID {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Event != "" && c.Event != filter.Event {
			continue
		}
		if filter.Property != "" && c.Property != filter.Property {
			continue
		}
		if filter.Method != "" && c.Method != filter.Method {
			continue
		}
		result = append(result, c)
	}
	return result
}

// Reset forgets recorded calls.
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	t.calls = t.calls[:0]
	t.mu.Unlock()
}

// BatchRecordingTransport is a RecordingTransport that also implements
// BatchTransport, recording each burst.
type BatchRecordingTransport struct {
	*RecordingTransport

	batchMu sync.Mutex
	batches [][]Operation
}

// NewBatchRecordingTransport returns an empty batch recorder.
func NewBatchRecordingTransport() *BatchRecordingTransport {
	return &BatchRecordingTransport{RecordingTransport: NewRecordingTransport()}
}

// Apply records the burst and replays it into the embedded recorder.
func (t *BatchRecordingTransport) Apply(ops []Operation) error {
	burst := make([]Operation, len(ops))
	for i, op := range ops {
		burst[i] = op.Clone()
	}
	t.batchMu.Lock()
	t.batches = append(t.batches, burst)
	t.batchMu.Unlock()
	for _, op := range ops {
		if err := op.ApplyTo(t.RecordingTransport); err != nil {
			return err
		}
	}
	return nil
}

// Batches returns the recorded bursts.
func (t *BatchRecordingTransport) Batches() [][]Operation {
	t.batchMu.Lock()
	defer t.batchMu.Unlock()
	return append([][]Operation(nil), t.batches...)
}
