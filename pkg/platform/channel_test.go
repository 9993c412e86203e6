package platform

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// --- Test helpers ---

// testBridge captures native method invocations for assertions.
type testBridge struct {
	mu       sync.Mutex
	calls    []testBridgeCall
	response any
	err      error
}

type testBridgeCall struct {
	channel string
	method  string
	args    map[string]any // JSON-decoded
}

func (b *testBridge) InvokeMethod(channel, method string, argsData []byte) ([]byte, error) {
	var args map[string]any
	if len(argsData) > 0 {
		json.Unmarshal(argsData, &args)
	}
	b.mu.Lock()
	b.calls = append(b.calls, testBridgeCall{channel: channel, method: method, args: args})
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return DefaultCodec.Encode(b.response)
}

func TestChannelTransport_Primitives(t *testing.T) {
	bridge := &testBridge{}
	tr := NewChannelTransport(bridge)

	if err := tr.Create("$1", "tether.Composite", map[string]any{"id": "red"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Set("$1", map[string]any{"background": []any{255, 0, 0, 255}}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Listen("$1", "tap", true); err != nil {
		t.Fatal(err)
	}
	if err := tr.Destroy("$1"); err != nil {
		t.Fatal(err)
	}

	wantMethods := []string{"create", "set", "listen", "destroy"}
	if len(bridge.calls) != len(wantMethods) {
		t.Fatalf("got %d calls, want %d", len(bridge.calls), len(wantMethods))
	}
	for i, m := range wantMethods {
		if bridge.calls[i].method != m {
			t.Errorf("call %d method = %q, want %q", i, bridge.calls[i].method, m)
		}
		if bridge.calls[i].channel != DefaultChannel {
			t.Errorf("call %d channel = %q", i, bridge.calls[i].channel)
		}
		if bridge.calls[i].args["id"] != "$1" {
			t.Errorf("call %d id = %v", i, bridge.calls[i].args["id"])
		}
	}
	if got := bridge.calls[0].args["type"]; got != "tether.Composite" {
		t.Errorf("create type = %v", got)
	}
	if got := bridge.calls[2].args["listen"]; got != true {
		t.Errorf("listen flag = %v", got)
	}
}

func TestChannelTransport_GetDecodesResult(t *testing.T) {
	bridge := &testBridge{response: map[string]any{"width": 320}}
	tr := NewChannelTransport(bridge, WithChannel("test/bridge"))

	got, err := tr.Get("$2", "bounds")
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["width"] != float64(320) {
		t.Errorf("Get = %#v", got)
	}
	if bridge.calls[0].channel != "test/bridge" || bridge.calls[0].args["property"] != "bounds" {
		t.Errorf("unexpected call %+v", bridge.calls[0])
	}
}

func TestChannelTransport_ErrorEnvelope(t *testing.T) {
	bridge := &testBridge{response: map[string]any{
		"error": map[string]any{"code": "E_NO_VIEW", "message": "no such view"},
	}}
	tr := NewChannelTransport(bridge)

	_, err := tr.Call("$3", "animate", nil)
	var cerr *ChannelError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ChannelError, got %v", err)
	}
	if cerr.Code != "E_NO_VIEW" || cerr.Error() != "native error E_NO_VIEW: no such view" {
		t.Errorf("ChannelError = %v", cerr)
	}
}

func TestChannelTransport_BridgeErrorAndClose(t *testing.T) {
	boom := errors.New("boom")
	tr := NewChannelTransport(&testBridge{err: boom})
	if err := tr.Set("$1", nil); !errors.Is(err, boom) {
		t.Errorf("Set err = %v, want boom", err)
	}

	tr.Close()
	if err := tr.Destroy("$1"); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close err = %v, want ErrClosed", err)
	}

	if _, err := NewChannelTransport(nil).Get("$1", "x"); !errors.Is(err, ErrPlatformUnavailable) {
		t.Errorf("nil bridge err = %v", err)
	}
}

func TestChannelTransport_ApplyBatches(t *testing.T) {
	ops := []Operation{
		{Op: OpCreate, ID: "$1", Type: "tether.Button", Properties: map[string]any{"text": "ok"}},
		{Op: OpListen, ID: "$1", Event: "select", Listen: false},
		{Op: OpDestroy, ID: "$1"},
	}

	bridge := &testBridge{}
	if err := NewChannelTransport(bridge).Apply(ops); err != nil {
		t.Fatal(err)
	}
	if len(bridge.calls) != 1 || bridge.calls[0].method != "batch" {
		t.Fatalf("expected one batch call, got %+v", bridge.calls)
	}
	encoded := bridge.calls[0].args["operations"].([]any)
	if len(encoded) != 3 {
		t.Fatalf("batch carries %d ops, want 3", len(encoded))
	}
	listen := encoded[1].(map[string]any)
	if listen["listen"] != false || listen["event"] != "select" {
		t.Errorf("listen op encoded as %v", listen)
	}
	if _, ok := encoded[2].(map[string]any)["properties"]; ok {
		t.Error("destroy op should not carry properties")
	}

	unbatched := &testBridge{}
	if err := NewChannelTransport(unbatched, WithBatching(false)).Apply(ops); err != nil {
		t.Fatal(err)
	}
	if len(unbatched.calls) != 3 {
		t.Errorf("unbatched Apply made %d calls, want 3", len(unbatched.calls))
	}
}

func TestOperationJSONRoundTrip(t *testing.T) {
	op := Operation{Op: OpCall, ID: "$4", Method: "measure", Parameters: map[string]any{"text": "hi"}}
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatal(err)
	}
	var back Operation
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Op != OpCall || back.ID != "$4" || back.Method != "measure" || back.Parameters["text"] != "hi" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestDecodeNotification(t *testing.T) {
	n, err := DecodeNotification([]byte(`{"target":"$5","event":"select","data":{"index":2}}`))
	if err != nil {
		t.Fatal(err)
	}
	if n.Target != "$5" || n.Event != "select" {
		t.Errorf("notification = %+v", n)
	}
	if n.Data.(map[string]any)["index"] != float64(2) {
		t.Errorf("data = %v", n.Data)
	}

	for _, bad := range []string{`[]`, `{"event":"x"}`, `{"target":"$1"}`, `{`} {
		if _, err := DecodeNotification([]byte(bad)); err == nil {
			t.Errorf("DecodeNotification(%s) expected error", bad)
		}
	}
}

func TestStreamTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTransport(&buf)
	tr.GetFunc = func(id, property string) (any, error) { return 42.0, nil }

	tr.Create("$1", "tether.TextView", map[string]any{"text": "a"})
	tr.Set("$1", map[string]any{"text": "b"})
	got, err := tr.Get("$1", "width")
	if err != nil || got != 42.0 {
		t.Errorf("Get = %v, %v", got, err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	var first Operation
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Op != OpCreate || first.Type != "tether.TextView" {
		t.Errorf("first line = %+v", first)
	}
}

func TestRecordingTransport_Filter(t *testing.T) {
	tr := NewRecordingTransport()
	tr.Create("id1", "type1", map[string]any{"foo": 1})
	tr.Create("id2", "type2", map[string]any{"foo": 2})
	tr.Set("id1", map[string]any{"bar": 1})
	tr.Set("id2", map[string]any{"bar": 2})

	if n := len(tr.Calls(Operation{})); n != 4 {
		t.Errorf("all calls = %d, want 4", n)
	}
	if n := len(tr.Calls(Operation{ID: "id1"})); n != 2 {
		t.Errorf("id1 calls = %d, want 2", n)
	}
	if n := len(tr.Calls(Operation{Op: OpCreate, Type: "type2"})); n != 1 {
		t.Errorf("create type2 calls = %d, want 1", n)
	}

	tr.SetValue("id1", "text", "hello")
	if v, _ := tr.Get("id1", "text"); v != "hello" {
		t.Errorf("Get = %v", v)
	}
}

func TestJSONCodec_Decode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    any
		wantErr bool
	}{
		{"empty", "  ", nil, false},
		{"null", "null", nil, false},
		{"number", "42", 42.0, false},
		{"object", `{"a":[1,"b"]}`, map[string]any{"a": []any{1.0, "b"}}, false},
		{"trailing value", `{} {}`, nil, true},
		{"truncated", `{"a":`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONCodec{}.Decode([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%q) = %#v, want %#v", tt.data, got, tt.want)
			}
		})
	}
}
