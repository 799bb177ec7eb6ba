// Package app wires the pipeline stages together and owns the run
// lifecycle: load and validate the pipeline definition, then verify raw
// data, provision the environment, execute the notebooks and publish the
// artifacts, strictly in that order.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"labpipe/internal/config"
	"labpipe/internal/ctxlog"
	"labpipe/internal/runner"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	appConfig *Config
	pipeline  *config.Pipeline
	runner    runner.Runner

	// stagingRoot is where run-scoped artifact staging directories are
	// created. Defaults to the OS temp dir; tests override it.
	stagingRoot string
}

// Option customizes an App; used by tests to substitute the command
// runner and the staging location.
type Option func(*App)

// WithRunner substitutes the external command runner.
func WithRunner(r runner.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithStagingRoot overrides where artifact bundles are staged.
func WithStagingRoot(dir string) Option {
	return func(a *App) { a.stagingRoot = dir }
}

// New is the constructor for the main application. It returns a fully
// initialized App with its own isolated logger and a loaded, validated
// pipeline model. A pipeline that fails to load is a fatal startup error,
// surfaced as a panic the caller recovers into a clean exit.
func New(outW io.Writer, appConfig *Config, loader config.Loader, opts ...Option) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	pipeline, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		// A failure to load the pipeline is a fatal startup error.
		panic(fmt.Errorf("failed to load pipeline: %w", err))
	}
	logger.Debug("Pipeline definition loaded and validated.", "pipeline", pipeline.Name)

	a := &App{
		outW:        outW,
		logger:      logger,
		appConfig:   appConfig,
		pipeline:    pipeline,
		runner:      runner.NewExecRunner(),
		stagingRoot: os.TempDir(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Pipeline returns the loaded pipeline model. Primarily for testing.
func (a *App) Pipeline() *config.Pipeline {
	return a.pipeline
}
