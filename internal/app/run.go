package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"labpipe/internal/ctxlog"
	"labpipe/internal/eis"
	"labpipe/internal/executor"
	"labpipe/internal/provision"
	"labpipe/internal/publish"
	"labpipe/internal/watch"
)

// Run executes one complete pipeline run. Every stage is a blocking,
// synchronous operation; the first failure aborts the whole run with no
// retry and no partial publish. A failed run can simply be re-triggered:
// the raw inputs are immutable and notebooks re-execute from source.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID, "pipeline", a.pipeline.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	// The only timeout boundary is the whole-run wall-clock budget; no
	// stage is individually cancellable.
	if a.pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.pipeline.Timeout)
		defer cancel()
	}

	logger.Info("🚀 Starting pipeline run.",
		"notebooks", len(a.pipeline.Notebooks),
		"manifest", a.pipeline.Environment.ManifestPath)

	if a.appConfig.DryRun {
		a.logPlan(logger)
		return nil
	}

	if a.pipeline.Data != nil {
		scope := eis.Scope(a.pipeline.Data.Scope)
		if scope == "" {
			scope = eis.ScopeMain
		}
		if _, err := eis.Verify(ctx, a.pipeline.Data.EISDir, scope); err != nil {
			return fmt.Errorf("raw data verification failed: %w", err)
		}
	}

	envName, err := provision.New(a.runner).Provision(ctx, a.pipeline.Environment)
	if err != nil {
		return fmt.Errorf("provisioning failed: %w", err)
	}

	exec := executor.New(a.runner, envName, a.pipeline.Environment.Kernel)
	if err := exec.ExecuteAll(ctx, a.pipeline.Notebooks); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	staging := filepath.Join(a.stagingRoot, "labpipe-"+runID)
	if err := publish.New(staging).Publish(ctx, a.pipeline.Publish, a.pipeline.Notebooks); err != nil {
		return fmt.Errorf("publishing failed: %w", err)
	}

	logger.Info("🏁 Pipeline run finished.")
	return nil
}

// RunWatch runs the pipeline once, then re-runs it whenever a file
// changes under the pipeline's trigger prefixes: the pipeline definition
// itself, each notebook's directory, and the raw data directory.
func (a *App) RunWatch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	seen := map[string]struct{}{}
	var paths []string
	add := func(p string) {
		if _, dup := seen[p]; !dup && p != "" {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	add(a.appConfig.PipelinePath)
	for _, nb := range a.pipeline.Notebooks {
		add(filepath.Dir(nb.Path))
	}
	if a.pipeline.Data != nil {
		add(a.pipeline.Data.EISDir)
	}

	return watch.New(paths, watch.DefaultDebounce, a.Run).Watch(ctx)
}

// logPlan reports what a real run would do, for -dry-run.
func (a *App) logPlan(logger *slog.Logger) {
	logger.Info("Dry run: environment.",
		"manifest", a.pipeline.Environment.ManifestPath,
		"python", a.pipeline.Environment.Python,
		"kernel", a.pipeline.Environment.Kernel,
		"texlive_groups", len(a.pipeline.Environment.TexLive))
	for i, nb := range a.pipeline.Notebooks {
		logger.Info("Dry run: notebook.", "order", i+1, "name", nb.Name, "path", nb.Path)
	}
	logger.Info("Dry run: publish.",
		"plots_dir", a.pipeline.Publish.PlotsDir,
		"artifact", a.pipeline.Publish.ArtifactName,
		"upload", a.pipeline.Publish.UploadURL != "",
		"summary", a.pipeline.Publish.SummaryPath != "")
}
