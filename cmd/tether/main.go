// Command tether runs widget scripts against the native bridge.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/tether/cmd/tether/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
