// Command vitalsctl is the operator CLI for vitalsd.
package main

import (
	"fmt"
	"os"

	"github.com/psantana5/vitals-engine/cmd/vitalsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
