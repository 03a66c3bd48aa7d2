// txshield trains the fraud detection model and promotes it when it clears
// the evaluation floors.
//
// Usage:
//
//	txshield run [--config=txshield.yaml] [--raw-data=<csv>] [--threshold-source=fixed|trained]
//	txshield validate [--raw-data=<csv>]
//	txshield status [--run-id=<id>]
//	txshield runs [--limit=<n>]
//
// Exit status is 0 for a promoted run, 2 when a gate stopped the run, and 1
// for operational errors.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	exitError = 1
	exitGate  = 2
)

// gateError carries a non-promoted outcome out of RunE so main can pick the exit status.
type gateError struct {
	msg string
}

func (e *gateError) Error() string { return e.msg }

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ge *gateError
		if errors.As(err, &ge) {
			os.Exit(exitGate)
		}
		os.Exit(exitError)
	}
}
