// Package cmd implements the tether CLI commands.
//
// The root command dispatches to subcommands (run, check, types). Output
// that tooling consumes goes to stdout; logs and summaries go to stderr.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/go-drift/tether/cmd/tether/internal/config"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Command represents a CLI command.
type Command struct {
	Name        string
	Short       string
	Long        string
	Usage       string
	Run         func(args []string) error
	SubCommands []*Command
}

var rootCmd = &Command{
	Name:  "tether",
	Short: "Tether - drive native widgets from scripts",
	Long: `Tether runs scripts against a native widget bridge. Widget
operations are batched per turn, laid out with constraints and
written as an operation stream for the native side to replay.

Use "tether <command> --help" for more information about a command.`,
	Usage: "tether <command> [flags]",
}

// Commands registered with the CLI.
var commands = make(map[string]*Command)

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *Command) {
	commands[cmd.Name] = cmd
	rootCmd.SubCommands = append(rootCmd.SubCommands, cmd)
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	return execute(os.Args[1:])
}

func execute(args []string) error {
	if len(args) == 0 {
		printHelp(rootCmd)
		return nil
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp(rootCmd)
		return nil
	case "-v", "--version", "version":
		fmt.Fprintf(stdout, "tether CLI version %s (built %s, bridge protocol %s)\n", Version, BuildTime, config.DefaultProtocol)
		return nil
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", cmdName)
		printHelp(rootCmd)
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	// Check for help flag on subcommand
	cmdArgs := args[1:]
	for _, arg := range cmdArgs {
		if arg == "-h" || arg == "--help" || arg == "help" {
			printCommandHelp(cmd)
			return nil
		}
	}

	return cmd.Run(cmdArgs)
}

func printHelp(cmd *Command) {
	fmt.Fprintln(stdout, cmd.Long)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Usage:")
	fmt.Fprintf(stdout, "  %s\n", cmd.Usage)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Commands:")
	for _, sub := range cmd.SubCommands {
		fmt.Fprintf(stdout, "  %-14s %s\n", sub.Name, sub.Short)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Flags:")
	fmt.Fprintln(stdout, "  -h, --help           Show help for a command")
	fmt.Fprintln(stdout, "  -v, --version        Show version information")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Examples:")
	fmt.Fprintln(stdout, "  tether run app.js                 Run a script, print operations")
	fmt.Fprintln(stdout, "  tether run app.js --wait 2s       Also run timers for up to 2s")
	fmt.Fprintln(stdout, "  tether check                      Show the resolved configuration")
}

func printCommandHelp(cmd *Command) {
	fmt.Fprintln(stdout, cmd.Long)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Usage:")
	fmt.Fprintf(stdout, "  %s\n", cmd.Usage)
}
