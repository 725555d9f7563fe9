// Package main provides the tidewatch command: the dashboard service and
// its maintenance subcommands.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
