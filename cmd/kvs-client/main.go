// Package main provides the entry point for kvs-client.
package main

import (
	"fmt"
	"os"

	"github.com/kvslab/kvs/internal/cli/command"
)

func main() {
	// ExitCoder errors (such as "Key not found" from rm) are printed
	// and exited inside Run; anything else lands here.
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
