// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/z5labs/evalrun"
	"github.com/z5labs/evalrun/config"
	"github.com/z5labs/evalrun/phase"
	"github.com/z5labs/evalrun/runlog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

const envPrefix = "EVALRUN"

const (
	configDirFlag = "config-dir"
	nameFlag      = "name"
	logLevelFlag  = "log-level"
	logFormatFlag = "log-format"
	traceFlag     = "trace"
)

type options struct {
	configDir string
	name      string
	logLevel  string
	logFormat string
	trace     bool
}

func newCommand(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "evalrun [phase...]",
		Short:         "Prepare an evaluation run and run its phases",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options{
				configDir: v.GetString(configDirFlag),
				name:      v.GetString(nameFlag),
				logLevel:  v.GetString(logLevelFlag),
				logFormat: v.GetString(logFormatFlag),
				trace:     v.GetBool(traceFlag),
			}
			err := run(cmd.Context(), afero.NewOsFs(), opts, args, stdout, stderr)
			if err != nil {
				io.WriteString(stderr, err.Error()+"\n")
			}
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.String(configDirFlag, evalrun.DefaultConfigDir, "directory holding paths.properties and models.txt")
	flags.String(nameFlag, "", "name of the properties file loaded after paths.properties")
	flags.String(logLevelFlag, "info", "minimum log level (debug, info, warn, error)")
	flags.String(logFormatFlag, "text", "console log format (text, json)")
	flags.Bool(traceFlag, false, "write trace spans to the run directory")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// only fails for a nil flag set
	_ = v.BindPFlags(flags)

	return cmd
}

func run(ctx context.Context, fsys afero.Fs, opts options, args []string, stdout, stderr io.Writer) (err error) {
	level, err := runlog.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	console, err := runlog.NewConsole(stderr, level, opts.logFormat)
	if err != nil {
		return err
	}
	logger := slog.New(runlog.WithTrace(console))

	cfg := evalrun.NewConfig(opts.configDir, evalrun.WithFs(fsys), evalrun.WithLogger(logger))
	command := declareCommand(cfg.Registry())
	cfg.ReadConfig(ctx, opts.name)
	cfg.Setup(ctx)

	var cleanups []phase.Phase
	defer func() {
		cerr := phase.Join(cleanups...).Run(context.WithoutCancel(ctx))
		err = errors.Join(err, cerr)
	}()

	f, ferr := runlog.OpenFile(fsys, cfg.Run.LogPath, level)
	if ferr != nil {
		logger.WarnContext(ctx, "logging to console only", slog.Any("error", ferr))
	} else {
		cleanups = append(cleanups, phase.Func(func(context.Context) error {
			return f.Close()
		}))
		logger = slog.New(runlog.WithTrace(runlog.Tee(console, f.Handler())))
	}

	if opts.trace {
		tp, terr := newTracerProvider(fsys, traceFile(cfg.Run))
		if terr != nil {
			return terr
		}
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		cleanups = append([]phase.Phase{phase.Func(func(ctx context.Context) error {
			otel.SetTracerProvider(prev)
			return tp.Shutdown(ctx)
		})}, cleanups...)
	}

	reg := phase.NewRegistry(phase.WithLogger(logger))
	err = registerPhases(reg, fsys, cfg, command, logger, stdout)
	if err != nil {
		return err
	}

	return reg.Run(ctx, phaseNames(ctx, args, cfg)...)
}

// phaseNames prefers the phases named on the command line over the
// phases property. No names at all selects every phase.
func phaseNames(ctx context.Context, args []string, cfg *evalrun.Config) []string {
	fromArgs := config.ReaderFunc[[]string](func(context.Context) (config.Value[[]string], error) {
		if len(args) == 0 {
			return config.Value[[]string]{}, nil
		}
		return config.ValueOf(args), nil
	})
	return config.MustOr[[]string](ctx, nil, config.Or[[]string](fromArgs, cfg.Phases))
}
