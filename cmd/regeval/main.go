// regeval runs regression executions against an LLM answer service and
// summarizes their history.
//
// Usage:
//
//	regeval run [--config regeval.yaml] [--runs 3] [--dry-run]
//	regeval history [--historic-dir data/historic] [--markdown]
//	regeval score <actual> <expected>
//	regeval serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
