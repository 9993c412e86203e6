package engine

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-drift/tether/pkg/device"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/measure"
	"github.com/go-drift/tether/pkg/platform"
	"github.com/go-drift/tether/pkg/widget"
)

type captureHandler struct {
	mu     sync.Mutex
	errs   []*errors.TetherError
	panics []*errors.PanicError
}

func (h *captureHandler) HandleError(err *errors.TetherError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *captureHandler) HandlePanic(err *errors.PanicError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, err)
}

func (h *captureHandler) snapshot() ([]*errors.TetherError, []*errors.PanicError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*errors.TetherError(nil), h.errs...), append([]*errors.PanicError(nil), h.panics...)
}

func captureErrors(t *testing.T) *captureHandler {
	t.Helper()
	h := &captureHandler{}
	errors.SetHandler(h)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return h
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Faces = measure.Basic{}
	return opts
}

func newEngine(t *testing.T, transport platform.Transport, opts Options) *Engine {
	t.Helper()
	e, err := New(transport, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func appendText(t *testing.T, e *Engine, props map[string]any) widget.Widget {
	t.Helper()
	w, err := e.Tree().Create("TextView", props)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.Root().Append(w); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return w
}

func createTypes(rec *platform.RecordingTransport) []string {
	var types []string
	for _, op := range rec.Calls(platform.Operation{Op: platform.OpCreate}) {
		types = append(types, op.Type)
	}
	return types
}

func TestTurnEndFlushesInOneBatch(t *testing.T) {
	rec := platform.NewBatchRecordingTransport()
	e := newEngine(t, rec, testOptions())

	e.Post(func() { appendText(t, e, map[string]any{"text": "Hello"}) })
	if n := e.RunPending(); n != 1 {
		t.Fatalf("RunPending = %d, want 1", n)
	}

	if got := len(rec.Batches()); got != 1 {
		t.Fatalf("batches = %d, want 1", got)
	}
	want := []string{widget.TypeContentView, widget.TypeTextView}
	if got := createTypes(rec.RecordingTransport); !reflect.DeepEqual(got, want) {
		t.Errorf("creates = %v, want %v", got, want)
	}
	if e.Bridge().Len() != 0 {
		t.Errorf("pending after turn = %d", e.Bridge().Len())
	}
}

func TestBatchDisabledReplaysRecords(t *testing.T) {
	rec := platform.NewBatchRecordingTransport()
	opts := testOptions()
	opts.Batch = false
	e := newEngine(t, rec, opts)

	e.Post(func() { appendText(t, e, map[string]any{"text": "Hello"}) })
	e.RunPending()

	if got := len(rec.Batches()); got != 0 {
		t.Errorf("batches = %d, want 0", got)
	}
	if got := len(createTypes(rec.RecordingTransport)); got != 2 {
		t.Errorf("creates = %d, want 2", got)
	}
}

func TestTurnEndFlushDisabled(t *testing.T) {
	rec := platform.NewRecordingTransport()
	opts := testOptions()
	opts.FlushOnTurnEnd = false
	e := newEngine(t, rec, opts)

	e.Post(func() { appendText(t, e, map[string]any{"text": "Hello"}) })
	e.RunPending()
	if got := len(rec.Calls(platform.Operation{})); got != 0 {
		t.Fatalf("calls before Flush = %d, want 0", got)
	}

	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := len(createTypes(rec)); got != 2 {
		t.Errorf("creates = %d, want 2", got)
	}
}

func countGets(rec *platform.RecordingTransport) int {
	return len(rec.Calls(platform.Operation{Op: platform.OpGet}))
}

func TestFlushInvalidatesReadCache(t *testing.T) {
	rec := platform.NewRecordingTransport()
	e := newEngine(t, rec, testOptions())
	label := appendText(t, e, map[string]any{"text": "Hello"})

	if err := label.Set("text", "Bye"); err != nil {
		t.Fatal(err)
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	before := countGets(rec)
	rec.SetValue(label.CID(), "text", "typed")

	got, err := label.Get("text")
	if err != nil {
		t.Fatal(err)
	}
	if got != "typed" {
		t.Errorf("Get after Flush = %v, want typed", got)
	}
	if n := countGets(rec) - before; n != 1 {
		t.Errorf("reads = %d, want 1", n)
	}

	if _, err := label.Get("text"); err != nil {
		t.Fatal(err)
	}
	if n := countGets(rec) - before; n != 1 {
		t.Errorf("reads after cached Get = %d, want 1", n)
	}
}

func TestTurnEndInvalidatesReadCache(t *testing.T) {
	rec := platform.NewRecordingTransport()
	e := newEngine(t, rec, testOptions())
	var label widget.Widget
	e.Post(func() {
		label = appendText(t, e, map[string]any{"text": "Hello"})
		if err := label.Set("text", "Bye"); err != nil {
			t.Error(err)
		}
	})
	e.RunPending()

	before := countGets(rec)
	rec.SetValue(label.CID(), "text", "typed")
	got, err := label.Get("text")
	if err != nil {
		t.Fatal(err)
	}
	if got != "typed" {
		t.Errorf("Get after turn = %v, want typed", got)
	}
	if n := countGets(rec) - before; n != 1 {
		t.Errorf("reads = %d, want 1", n)
	}

	// A turn with nothing to send still drops cached reads.
	rec.SetValue(label.CID(), "text", "again")
	e.Post(func() {})
	e.RunPending()
	got, err = label.Get("text")
	if err != nil {
		t.Fatal(err)
	}
	if got != "again" {
		t.Errorf("Get after empty turn = %v, want again", got)
	}
	if n := countGets(rec) - before; n != 2 {
		t.Errorf("reads = %d, want 2", n)
	}
}

func TestDeviceIsCreatedOnce(t *testing.T) {
	rec := platform.NewRecordingTransport()
	e := newEngine(t, rec, testOptions())
	if e.Context().Len() != 1 {
		t.Fatalf("objects before Device = %d, want 1", e.Context().Len())
	}

	d, err := e.Device()
	if err != nil {
		t.Fatal(err)
	}
	again, err := e.Device()
	if err != nil {
		t.Fatal(err)
	}
	if d != again {
		t.Error("Device returned a second instance")
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	want := []string{widget.TypeContentView, device.Type}
	if got := createTypes(rec); !reflect.DeepEqual(got, want) {
		t.Errorf("creates = %v, want %v", got, want)
	}
	if err := d.Dispose(); !errors.Is(err, device.ErrNotDisposable) {
		t.Errorf("Dispose = %v", err)
	}
}

func TestResizeNotificationRelayouts(t *testing.T) {
	rec := platform.NewRecordingTransport()
	e := newEngine(t, rec, testOptions())

	var box widget.Widget
	e.Post(func() {
		w, err := e.Tree().Create("Composite", map[string]any{"layoutData": "stretch"})
		if err != nil {
			t.Error(err)
			return
		}
		if err := e.Root().Append(w); err != nil {
			t.Error(err)
		}
		box = w
	})
	e.RunPending()
	rec.Reset()

	msg := `{"target":"$1","event":"resize","data":{"width":640,"height":360}}`
	if err := e.HandleNotification([]byte(msg)); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	e.RunPending()

	sets := rec.Calls(platform.Operation{Op: platform.OpSet, ID: box.CID()})
	if len(sets) != 1 {
		t.Fatalf("sets = %v, want 1", sets)
	}
	want := []any{0.0, 0.0, 640.0, 360.0}
	if got := sets[0].Properties["bounds"]; !reflect.DeepEqual(got, want) {
		t.Errorf("bounds = %v, want %v", got, want)
	}
}

func TestHandleNotificationRejectsMalformed(t *testing.T) {
	e := newEngine(t, platform.NewRecordingTransport(), testOptions())

	tests := []string{
		`not json`,
		`[1, 2]`,
		`{"target": "$1"}`,
	}
	for _, msg := range tests {
		err := e.HandleNotification([]byte(msg))
		if errors.KindOf(err) != errors.KindParsing {
			t.Errorf("HandleNotification(%s) = %v, want parsing error", msg, err)
		}
	}
	if e.Pending() != 0 {
		t.Errorf("pending tasks = %d", e.Pending())
	}
}

func TestNotifyFailureIsReported(t *testing.T) {
	h := captureErrors(t)
	e := newEngine(t, platform.NewRecordingTransport(), testOptions())

	e.Notify(platform.Notification{Target: "$1", Event: "change:nope", Data: 1})
	e.RunPending()

	errs, _ := h.snapshot()
	if len(errs) != 1 || errs[0].Kind != errors.KindParsing || errs[0].Property != "nope" {
		t.Errorf("reported = %v", errs)
	}
}

func TestTaskPanicIsRecovered(t *testing.T) {
	h := captureErrors(t)
	e := newEngine(t, platform.NewRecordingTransport(), testOptions())

	ran := false
	e.Post(func() { panic("boom") })
	e.Post(func() { ran = true })
	if n := e.RunPending(); n != 2 {
		t.Fatalf("RunPending = %d, want 2", n)
	}
	if !ran {
		t.Error("task after panic did not run")
	}
	_, panics := h.snapshot()
	if len(panics) != 1 || panics[0].Op != "engine.Task" || panics[0].Value != "boom" {
		t.Errorf("panics = %v", panics)
	}
}

func TestFlushErrorIsReported(t *testing.T) {
	h := captureErrors(t)
	rec := platform.NewRecordingTransport()
	e := newEngine(t, rec, testOptions())
	rec.Err = errors.New("link down")

	e.Post(func() {})
	e.RunPending()

	errs, _ := h.snapshot()
	if len(errs) != 1 || errs[0].Kind != errors.KindTransport {
		t.Errorf("reported = %v", errs)
	}
}

func TestRunAndDo(t *testing.T) {
	captureErrors(t)
	rec := platform.NewRecordingTransport()
	e := newEngine(t, rec, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	err := e.Do(waitCtx, func() error {
		return e.Root().Set("opacity", 0.5)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !e.Running() {
		t.Error("Running = false while Run is active")
	}
	if err := e.Run(ctx); errors.KindOf(err) != errors.KindMisuse {
		t.Errorf("second Run = %v, want misuse error", err)
	}

	err = e.Do(waitCtx, func() error { panic("boom") })
	if !errors.Is(err, errTaskPanicked) {
		t.Errorf("Do after panic = %v", err)
	}

	var got error
	err = e.Do(waitCtx, func() error {
		_, got = e.Root().Get("opacity")
		return nil
	})
	if err != nil || got != nil {
		t.Errorf("Do = %v, Get = %v", err, got)
	}
	if sets := rec.Calls(platform.Operation{Op: platform.OpCreate, ID: "$1"}); len(sets) != 1 {
		t.Errorf("root creates = %d, want 1", len(sets))
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestOptionDefaults(t *testing.T) {
	e := newEngine(t, platform.NewRecordingTransport(), Options{Faces: measure.Basic{}})
	opts := e.Options()
	if opts.Width != 360 || opts.Height != 640 || opts.FontSize != 13 {
		t.Errorf("options = %+v", opts)
	}
	if got := e.Root().Bounds().Size(); got.Width != 360 || got.Height != 640 {
		t.Errorf("root size = %v", got)
	}
}
