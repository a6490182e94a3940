// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package evalrun provides the configuration of repeated evaluation runs.
//
// A [Config] declares the evaluator properties, loads them from layered
// properties files in a config directory and derives the directories a
// run writes to:
//
//	cfg := evalrun.NewConfig("config")
//	cfg.ReadConfig(ctx, "quick") // paths.properties, then quick.properties
//	cfg.Setup(ctx)               // run directory and system list
//
// Loading never fails as a whole. Missing or malformed files and values
// are logged and the affected properties keep their defaults.
//
// # Run directories
//
// Runs live below the output root, in a directory named after the run id
// recorded in the marker file <output>/.current. Every invocation resumes
// that run until the marker is deleted:
//
//	<output>/.current
//	<output>/<run id>/data
//	<output>/<run id>/temp
//	<output>/<run id>/log-<unix millis>
//
// # System list
//
// The systems to evaluate are listed one per line in <config>/models.txt.
// See package [github.com/z5labs/evalrun/systems] for the format.
package evalrun
