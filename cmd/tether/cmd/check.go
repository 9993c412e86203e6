package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/tether/pkg/engine"
	"github.com/go-drift/tether/pkg/platform"
)

func init() {
	RegisterCommand(&Command{
		Name:  "check",
		Short: "Validate and print the resolved configuration",
		Long: `Load tether.yaml, tether.yml or tether.toml from DIR (default: the
current directory), or the file given with --config, validate it and print
the effective settings as YAML.`,
		Usage: "tether check [DIR] [--config FILE]",
		Run:   runCheck,
	})
	RegisterCommand(&Command{
		Name:  "types",
		Short: "List the registered widget types",
		Long:  `Print the widget types scripts can pass to tether.create, one per line.`,
		Usage: "tether types",
		Run:   runTypes,
	})
}

// effective is the printed form of a resolved configuration.
type effective struct {
	Source string `yaml:"source"`
	Bridge struct {
		Protocol       string `yaml:"protocol"`
		Batch          bool   `yaml:"batch"`
		FlushOnTurnEnd bool   `yaml:"flushOnTurnEnd"`
	} `yaml:"bridge"`
	Layout struct {
		EmitBounds bool `yaml:"emitBounds"`
	} `yaml:"layout"`
	Device struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"device"`
	Text struct {
		FontSize float64 `yaml:"fontSize"`
	} `yaml:"text"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

func runCheck(args []string) error {
	dir := "."
	var configPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("--config requires a file path")
			}
			configPath = args[i+1]
			i++
		default:
			dir = args[i]
		}
	}
	if configPath == "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}

	res, err := resolveConfig(configPath, dir)
	if err != nil {
		return err
	}

	var out effective
	out.Source = res.Path
	if out.Source == "" {
		out.Source = "defaults"
	}
	out.Bridge.Protocol = res.Protocol
	out.Bridge.Batch = res.Options.Batch
	out.Bridge.FlushOnTurnEnd = res.Options.FlushOnTurnEnd
	out.Layout.EmitBounds = res.Options.EmitBounds
	out.Device.Width = res.Options.Width
	out.Device.Height = res.Options.Height
	out.Text.FontSize = res.Options.FontSize
	out.Log.Level = res.Level.String()
	out.Log.Development = res.Development

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return err
	}
	return enc.Close()
}

func runTypes(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("types takes no arguments")
	}
	e, err := engine.New(platform.NewRecordingTransport(), engine.DefaultOptions())
	if err != nil {
		return err
	}
	for _, name := range e.Tree().Types() {
		fmt.Fprintln(stdout, name)
	}
	return nil
}
