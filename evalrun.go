// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package evalrun

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/z5labs/evalrun/config"
	"github.com/z5labs/evalrun/runpath"
	"github.com/z5labs/evalrun/systems"

	"github.com/spf13/afero"
)

// DefaultConfigDir is the config directory used when none is given.
const DefaultConfigDir = "config"

const (
	defaultOutputDir   = "output"
	defaultModelsDir   = "models"
	defaultResourceDir = ""
)

// Settings is a snapshot of the effective evaluator properties.
type Settings struct {
	Output              string   `config:"output"`
	Models              string   `config:"models"`
	Resources           string   `config:"resources"`
	Append              bool     `config:"append"`
	Debug               int      `config:"debug"`
	Verbosity           int      `config:"verbosity"`
	Timeout             int64    `config:"timeout"`
	Seed                int64    `config:"seed"`
	SystemIterations    int      `config:"systemIterations"`
	AlgorithmIterations int      `config:"algorithmIterations"`
	Phases              []string `config:"phases"`
}

// SettingsError occurs when the effective properties can not be
// decoded into [Settings].
type SettingsError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e SettingsError) Error() string {
	return fmt.Sprintf("failed to decode settings: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e SettingsError) Unwrap() error {
	return e.Cause
}

// Option configures a [Config].
type Option func(*Config)

// WithFs sets the filesystem config files, markers and system lists
// are read from.
func WithFs(fs afero.Fs) Option {
	return func(c *Config) {
		c.fs = fs
	}
}

// WithLogger sets the logger loading and setup are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.log = logger
	}
}

// WithClock sets the time source for the default seed and run ids.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

// Config is the configuration of an evaluation.
//
// The path fields are only valid after [Config.ReadConfig] and the run
// fields only after [Config.Setup]. A Config is not safe for concurrent use.
type Config struct {
	ConfigDir string

	OutputProperty    *config.Property[string]
	ModelsProperty    *config.Property[string]
	ResourcesProperty *config.Property[string]

	Append              *config.Property[bool]
	Debug               *config.Property[int]
	Verbosity           *config.Property[int]
	Timeout             *config.Property[int64]
	Seed                *config.Property[int64]
	SystemIterations    *config.Property[int]
	AlgorithmIterations *config.Property[int]
	Phases              *config.Property[[]string]

	OutputRoot  string
	ResourceDir string
	ModelDir    string

	Run     runpath.Paths
	Systems []systems.Entry

	reg *config.Registry
	fs  afero.Fs
	log *slog.Logger
	now func() time.Time
}

// NewConfig returns a [Config] reading from configDir. An empty
// configDir means [DefaultConfigDir].
func NewConfig(configDir string, opts ...Option) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	c := &Config{
		ConfigDir: configDir,
		reg:       config.NewRegistry(),
		fs:        afero.NewOsFs(),
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.OutputProperty = config.Declare(c.reg, "output", config.String)
	c.ModelsProperty = config.Declare(c.reg, "models", config.String)
	c.ResourcesProperty = config.Declare(c.reg, "resources", config.String)
	c.Append = config.Declare(c.reg, "append", config.Bool, config.WithDefault(false))
	c.Debug = config.Declare(c.reg, "debug", config.Int, config.WithDefault(0))
	c.Verbosity = config.Declare(c.reg, "verbosity", config.Int, config.WithDefault(0))
	c.Timeout = config.Declare(c.reg, "timeout", config.Int64, config.WithDefault[int64](math.MaxInt64))
	c.Seed = config.Declare(c.reg, "seed", config.Int64, config.WithDefault(c.now().UnixMilli()))
	c.SystemIterations = config.Declare(c.reg, "systemIterations", config.Int, config.WithDefault(1))
	c.AlgorithmIterations = config.Declare(c.reg, "algorithmIterations", config.Int, config.WithDefault(1))
	c.Phases = config.Declare(c.reg, "phases", config.List(config.String))
	return c
}

// Registry returns the registry of the declared properties. Further
// properties can be declared on it before [Config.ReadConfig].
func (c *Config) Registry() *config.Registry {
	return c.reg
}

// ReadConfig loads paths.properties and, if name is not empty,
// <name>.properties from the config directory, then derives the
// output root, resource and model directories.
func (c *Config) ReadConfig(ctx context.Context, name string) []config.FileResult {
	results := config.NewLoader(c.reg, config.WithFs(c.fs), config.WithLogger(c.log)).Load(ctx, c.ConfigDir, name)

	c.OutputRoot = config.MustOr(ctx, defaultOutputDir, config.NonEmpty(c.OutputProperty))
	c.ResourceDir = config.MustOr(ctx, defaultResourceDir, config.NonEmpty(c.ResourcesProperty))
	c.ModelDir = config.Must(ctx, config.Map(
		config.Default(defaultModelsDir, config.NonEmpty(c.ModelsProperty)),
		func(_ context.Context, models string) (string, error) {
			return filepath.Join(c.ResourceDir, models), nil
		},
	))
	return results
}

// Setup resolves the run directory below the output root and reads the
// system list. It must be called after [Config.ReadConfig].
func (c *Config) Setup(ctx context.Context) {
	resolver := runpath.NewResolver(
		runpath.WithFs(c.fs),
		runpath.WithLogger(c.log),
		runpath.WithClock(c.now),
	)
	c.Run = resolver.Resolve(ctx, c.OutputRoot)
	c.Systems = systems.ReadFile(ctx, c.fs, c.log, filepath.Join(c.ConfigDir, systems.FileName))
}

// SystemNames returns the names of the systems to evaluate.
func (c *Config) SystemNames() []string {
	return systems.Names(c.Systems)
}

// SystemIDs returns the line of every system in the system list.
func (c *Config) SystemIDs() []int {
	return systems.Lines(c.Systems)
}

// Settings returns the effective property values.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	err := c.reg.Unmarshal(&s)
	if err != nil {
		return Settings{}, SettingsError{Cause: err}
	}
	return s, nil
}
