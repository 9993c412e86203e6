package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/layout"
	"github.com/go-drift/tether/pkg/widget"
)

// debugServer manages the HTTP server for widget tree inspection.
type debugServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// WidgetTreeNode is a widget in the serialized tree.
type WidgetTreeNode struct {
	Type     string           `json:"type"`
	CID      string           `json:"cid"`
	ID       string           `json:"id,omitempty"`
	Classes  []string         `json:"classes,omitempty"`
	Bounds   [4]SafeFloat     `json:"bounds"`
	Depth    int              `json:"depth"`
	Children []WidgetTreeNode `json:"children,omitempty"`
}

// SafeFloat wraps a float64 to handle Inf/NaN in JSON encoding.
type SafeFloat float64

func (f SafeFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 1) {
		return []byte(`"Infinity"`), nil
	}
	if math.IsInf(v, -1) {
		return []byte(`"-Infinity"`), nil
	}
	if math.IsNaN(v) {
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v)
}

// BridgeInfo is the body of /bridge.
type BridgeInfo struct {
	Pending    int `json:"pending"`
	Queued     int `json:"queued"`
	Merged     int `json:"merged"`
	Flushes    int `json:"flushes"`
	Sent       int `json:"sent"`
	RoundTrips int `json:"roundTrips"`
	Objects    int `json:"objects"`
}

// maxTreeDepth limits recursion depth when serializing the widget tree.
const maxTreeDepth = 500

// StartDebugServer serves the widget tree and bridge counters on addr,
// e.g. "localhost:0". It returns the bound address. The handlers read
// engine state through Do, so the loop must be running.
func (e *Engine) StartDebugServer(addr string) (net.Addr, error) {
	s := &e.debugSrv
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return s.listener.Addr(), nil
	}

	// Bind listener first to fail fast on port conflicts
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debug server listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/widget-tree", e.handleWidgetTree)
	mux.HandleFunc("/bridge", e.handleBridge)
	mux.HandleFunc("/health", handleHealth)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.server = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			// Server failed - clear state so it can be restarted
			s.mu.Lock()
			s.server = nil
			s.listener = nil
			s.mu.Unlock()
			e.logger.Error("debug server failed", zap.Error(err))
		}
	}()

	e.logger.Info("debug server listening", zap.Stringer("addr", listener.Addr()))
	return listener.Addr(), nil
}

// StopDebugServer gracefully shuts down the debug server.
func (e *Engine) StopDebugServer() {
	s := &e.debugSrv
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

// handleHealth returns a simple health check response.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleWidgetTree returns the widget tree as JSON.
func (e *Engine) handleWidgetTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tree WidgetTreeNode
	err := e.Do(r.Context(), func() error {
		if e.root.IsDisposed() {
			return fmt.Errorf("no widget tree")
		}
		tree = SerializeWidgetTree(e.root)
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, tree)
}

// handleBridge returns the batcher counters as JSON.
func (e *Engine) handleBridge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var info BridgeInfo
	err := e.Do(r.Context(), func() error {
		info = e.bridgeInfo()
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, info)
}

func (e *Engine) bridgeInfo() BridgeInfo {
	st := e.bridge.Stats()
	return BridgeInfo{
		Pending:    e.bridge.Len(),
		Queued:     st.Queued,
		Merged:     st.Merged,
		Flushes:    st.Flushes,
		Sent:       st.Sent,
		RoundTrips: st.RoundTrips,
		Objects:    e.ctx.Len(),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	// Encode to buffer first so we can catch errors
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// SerializeWidgetTree converts a widget and its descendants to
// JSON-serializable form. Must be called on the loop.
func SerializeWidgetTree(root widget.Widget) WidgetTreeNode {
	return serializeWidget(root, 0)
}

func serializeWidget(wd widget.Widget, depth int) WidgetTreeNode {
	b := wd.Bounds()
	node := WidgetTreeNode{
		Type:   wd.TypeName(),
		CID:    wd.CID(),
		Bounds: [4]SafeFloat{SafeFloat(b.Left), SafeFloat(b.Top), SafeFloat(b.Width()), SafeFloat(b.Height())},
		Depth:  depth,
	}
	if id, ok := wd.(interface{ ID() string }); ok {
		node.ID = id.ID()
	}
	if cl, ok := wd.(interface{ Classes() []string }); ok {
		node.Classes = cl.Classes()
	}

	// Recurse into children (with depth limit)
	if c, ok := wd.(layout.Container); ok && depth < maxTreeDepth {
		for _, child := range c.Children() {
			if cw, ok := child.(widget.Widget); ok {
				node.Children = append(node.Children, serializeWidget(cw, depth+1))
			}
		}
	}
	return node
}
