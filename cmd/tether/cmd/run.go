package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/go-drift/tether/cmd/tether/internal/config"
	"github.com/go-drift/tether/pkg/engine"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/platform"
	"github.com/go-drift/tether/pkg/script"
)

func init() {
	RegisterCommand(&Command{
		Name:  "run",
		Short: "Run a script and print the operation stream",
		Long: `Run a JavaScript file against a fresh widget tree. Every operation the
bridge sends to native is written to stdout as one JSON line. The first
line announces the bridge protocol and device size.

The configuration is read from --config, or from tether.yaml, tether.yml
or tether.toml next to the script.

Flags:
  --config FILE        Configuration file to use
  --transport KIND     stream (one line per operation, default) or
                       channel (one line per method-channel invocation)
  --events FILE        Deliver native notifications read from FILE as JSON
                       lines ({"target","event","data"}); "-" reads stdin
  --wait DURATION      Keep running pending timers for up to DURATION
  --debug-addr ADDR    Serve the widget tree over HTTP until interrupted
  --strict             Exit with an error if any error was reported`,
		Usage: "tether run <script.js> [--config FILE] [--transport stream|channel] [--events FILE] [--wait DURATION] [--debug-addr ADDR] [--strict]",
		Run:   runRun,
	})
}

type runOptions struct {
	configPath string
	transport  string
	events     string
	wait       time.Duration
	debugAddr  string
	strict     bool
}

func runRun(args []string) error {
	positional, opts, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("script is required\n\nUsage: tether run <script.js> [flags]")
	}
	scriptPath := positional[0]

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	res, err := resolveConfig(opts.configPath, filepath.Dir(scriptPath))
	if err != nil {
		return err
	}
	logger, err := res.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	handler := &countingHandler{next: errors.NewZapHandler(logger)}
	errors.SetHandler(handler)
	defer errors.SetHandler(nil)

	if err := writeHello(stdout, res); err != nil {
		return err
	}

	transport, err := newTransport(opts.transport, stdout, res.Options.Batch)
	if err != nil {
		return err
	}

	engineOpts := res.Options
	engineOpts.Logger = logger
	e, err := engine.New(transport, engineOpts)
	if err != nil {
		return err
	}
	rt := script.New(e)
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = e.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	name := filepath.Base(scriptPath)
	runErr := e.Do(ctx, func() error {
		_, err := rt.Run(name, string(src))
		return err
	})
	if runErr != nil {
		logger.Error("script failed", zap.String("script", name), zap.Error(runErr))
	}

	if runErr == nil && opts.events != "" {
		if err := deliverEvents(e, opts.events, logger); err != nil {
			return err
		}
	}

	if runErr == nil && opts.wait > 0 {
		waitForTimers(ctx, rt, opts.wait)
	}

	if runErr == nil && opts.debugAddr != "" {
		addr, err := e.StartDebugServer(opts.debugAddr)
		if err != nil {
			return fmt.Errorf("failed to start debug server: %w", err)
		}
		fmt.Fprintf(stderr, "Debug server listening on http://%s (Ctrl+C to stop)\n", addr)
		<-ctx.Done()
		e.StopDebugServer()
	}

	// The signal context may be done by now; the final flush still runs.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Do(flushCtx, e.Flush); err != nil && runErr == nil {
		runErr = err
	}

	printStats(stderr, e)

	if runErr != nil {
		return runErr
	}
	if n := handler.count.Load(); opts.strict && n > 0 {
		return fmt.Errorf("%d error(s) reported", n)
	}
	return nil
}

func parseRunArgs(args []string) ([]string, runOptions, error) {
	opts := runOptions{transport: "stream"}
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}
		if arg == "--strict" {
			opts.strict = true
			continue
		}

		name, v, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--config", "--transport", "--events", "--wait", "--debug-addr":
		default:
			return nil, opts, fmt.Errorf("unknown flag %s", name)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, opts, fmt.Errorf("%s requires a value", name)
			}
			v = args[i+1]
			i++
		}

		switch name {
		case "--config":
			opts.configPath = v
		case "--transport":
			opts.transport = v
		case "--events":
			opts.events = v
		case "--debug-addr":
			opts.debugAddr = v
		case "--wait":
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return nil, opts, fmt.Errorf("--wait: invalid duration %q", v)
			}
			opts.wait = d
		}
	}
	return positional, opts, nil
}

func resolveConfig(path, dir string) (*config.Resolved, error) {
	if path != "" {
		return config.ResolveFile(path)
	}
	return config.ResolveDir(dir)
}

// writeHello announces the session. Native replayers read it before the
// first operation.
func writeHello(w io.Writer, res *config.Resolved) error {
	hello := map[string]any{
		"protocol": res.Protocol,
		"width":    res.Options.Width,
		"height":   res.Options.Height,
	}
	data, err := json.Marshal(map[string]any{"hello": hello})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func newTransport(kind string, w io.Writer, batch bool) (platform.Transport, error) {
	switch kind {
	case "stream":
		return platform.NewStreamTransport(w), nil
	case "channel":
		return platform.NewChannelTransport(&lineBridge{w: w}, platform.WithBatching(batch)), nil
	}
	return nil, fmt.Errorf("--transport: unknown transport %q (want stream or channel)", kind)
}

// lineBridge is a NativeBridge that writes each invocation as a JSON line
// and answers every call with null.
type lineBridge struct {
	w io.Writer
}

func (b *lineBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	line := struct {
		Channel string          `json:"channel"`
		Method  string          `json:"method"`
		Args    json.RawMessage `json:"args,omitempty"`
	}{channel, method, args}
	data, err := json.Marshal(line)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(b.w, "%s\n", data); err != nil {
		return nil, err
	}
	return []byte("null"), nil
}

// deliverEvents feeds notifications to the engine in file order. Malformed
// lines are logged and skipped.
func deliverEvents(e *engine.Engine, path string, logger *zap.Logger) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open events: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 || data[0] == '#' {
			continue
		}
		if err := e.HandleNotification(data); err != nil {
			logger.Warn("skipping notification", zap.Int("line", line), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return nil
}

func waitForTimers(ctx context.Context, rt *script.Runtime, limit time.Duration) {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for rt.PendingTimers() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

func printStats(w io.Writer, e *engine.Engine) {
	s := e.Bridge().Stats()
	fmt.Fprintf(w, "tether: %d queued, %d merged, %d flushes, %d sent, %d round trips\n",
		s.Queued, s.Merged, s.Flushes, s.Sent, s.RoundTrips)
}

// countingHandler forwards reports and counts them for --strict.
type countingHandler struct {
	next  errors.ErrorHandler
	count atomic.Int32
}

func (h *countingHandler) HandleError(err *errors.TetherError) {
	h.count.Add(1)
	h.next.HandleError(err)
}

func (h *countingHandler) HandlePanic(err *errors.PanicError) {
	h.count.Add(1)
	h.next.HandlePanic(err)
}
