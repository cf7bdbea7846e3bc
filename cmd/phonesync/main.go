// Package main provides the PhoneSync CLI entry point.
// PhoneSync is an incremental media reconciliation and organization engine.
package main

import (
	"fmt"
	"os"

	"github.com/phonesync/phonesync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
