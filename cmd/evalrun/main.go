// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command evalrun prepares the run directory of an evaluation and runs
// its phases.
//
// Usage:
//
//	evalrun [flags] [phase...]
//
// Without phase arguments the phases listed in the "phases" property are
// run, or every built-in phase if that property is not set. Every flag can
// also be set with an EVALRUN_ prefixed environment variable, e.g.
// EVALRUN_CONFIG_DIR or EVALRUN_LOG_LEVEL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
