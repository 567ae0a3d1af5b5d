// Package main provides the pkgsync CLI tool for incrementally syncing
// package metadata files from a mirror or an object store.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
