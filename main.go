// Package main is the entry point for the packetscope analysis engine.
package main

import (
	"fmt"
	"os"

	"github.com/packetscope/packetscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
