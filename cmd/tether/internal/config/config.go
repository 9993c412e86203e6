package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/tether/pkg/engine"
)

// DefaultProtocol is the bridge protocol version assumed when none is
// configured.
const DefaultProtocol = "v1.2.0"

// FileNames are the configuration files LoadOptional looks for, in order.
var FileNames = []string{"tether.yaml", "tether.yml", "tether.toml"}

// Config represents the optional tether.yaml or tether.toml configuration.
// Pointer fields distinguish "unset" from false.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge" toml:"bridge"`
	Layout LayoutConfig `yaml:"layout" toml:"layout"`
	Device DeviceConfig `yaml:"device" toml:"device"`
	Text   TextConfig   `yaml:"text" toml:"text"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// BridgeConfig controls how operations reach the native side.
type BridgeConfig struct {
	Protocol       string `yaml:"protocol,omitempty" toml:"protocol,omitempty"`
	Batch          *bool  `yaml:"batch,omitempty" toml:"batch,omitempty"`
	FlushOnTurnEnd *bool  `yaml:"flushOnTurnEnd,omitempty" toml:"flushOnTurnEnd,omitempty"`
}

// LayoutConfig controls the layout pass.
type LayoutConfig struct {
	EmitBounds *bool `yaml:"emitBounds,omitempty" toml:"emitBounds,omitempty"`
}

// DeviceConfig is the initial content view size.
type DeviceConfig struct {
	Width  float64 `yaml:"width,omitempty" toml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty" toml:"height,omitempty"`
}

// TextConfig configures text measurement.
type TextConfig struct {
	FontSize float64 `yaml:"fontSize,omitempty" toml:"fontSize,omitempty"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level       string `yaml:"level,omitempty" toml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty" toml:"development,omitempty"`
}

// Resolved contains validated configuration values.
type Resolved struct {
	// Path is the file the configuration was read from, empty for defaults.
	Path        string
	Protocol    string
	Options     engine.Options
	Level       zapcore.Level
	Development bool
}

// Load reads the configuration file at path. The decoder is chosen by
// extension: .toml uses TOML, anything else YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml" or
// ".toml"). Unknown keys are rejected so typos do not pass silently.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return &cfg, nil
}

// LoadOptional reads the first of FileNames present in dir. It returns the
// zero configuration and an empty path when none exists.
func LoadOptional(dir string) (*Config, string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to stat %s: %w", name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	return &Config{}, "", nil
}

// Resolve validates cfg and fills defaults.
func Resolve(cfg *Config) (*Resolved, error) {
	opts := engine.DefaultOptions()

	protocol := strings.TrimSpace(cfg.Bridge.Protocol)
	if protocol == "" {
		protocol = DefaultProtocol
	}
	if !strings.HasPrefix(protocol, "v") {
		protocol = "v" + protocol
	}
	if !semver.IsValid(protocol) {
		return nil, fmt.Errorf("bridge.protocol %q is not a valid version", cfg.Bridge.Protocol)
	}
	if semver.Major(protocol) != semver.Major(DefaultProtocol) {
		return nil, fmt.Errorf("bridge.protocol %s is not supported (want %s.x)", protocol, semver.Major(DefaultProtocol))
	}
	protocol = semver.Canonical(protocol)

	if cfg.Bridge.Batch != nil {
		opts.Batch = *cfg.Bridge.Batch
	}
	if cfg.Bridge.FlushOnTurnEnd != nil {
		opts.FlushOnTurnEnd = *cfg.Bridge.FlushOnTurnEnd
	}
	if cfg.Layout.EmitBounds != nil {
		opts.EmitBounds = *cfg.Layout.EmitBounds
	}

	var err error
	if opts.Width, err = positive("device.width", cfg.Device.Width, opts.Width); err != nil {
		return nil, err
	}
	if opts.Height, err = positive("device.height", cfg.Device.Height, opts.Height); err != nil {
		return nil, err
	}
	if opts.FontSize, err = positive("text.fontSize", cfg.Text.FontSize, opts.FontSize); err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if s := strings.TrimSpace(cfg.Log.Level); s != "" {
		if level, err = zapcore.ParseLevel(s); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}

	return &Resolved{
		Protocol:    protocol,
		Options:     opts,
		Level:       level,
		Development: cfg.Log.Development,
	}, nil
}

// ResolveDir loads the optional configuration from dir and resolves it.
func ResolveDir(dir string) (*Resolved, error) {
	cfg, path, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	res, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}

// ResolveFile loads the configuration at path and resolves it.
func ResolveFile(path string) (*Resolved, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	res, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}

// NewLogger builds the CLI logger. Output goes to stderr so stdout stays
// free for the operation stream.
func (r *Resolved) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if r.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(r.Level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func positive(name string, v, def float64) (float64, error) {
	switch {
	case v == 0:
		return def, nil
	case v < 0:
		return 0, fmt.Errorf("%s must be positive, got %v", name, v)
	}
	return v, nil
}
