// Package main is the entry point for the safety scanner driver CLI.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/safetyscanner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
