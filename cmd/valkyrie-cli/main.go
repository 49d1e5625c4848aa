// Package main is the valkyrie operator CLI. It drives the automation core
// through the gRPC ingestion API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(dialInsecure).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
