// Package executor runs the analysis notebooks strictly sequentially, in
// declaration order, against the provisioned kernel. Later notebooks may
// assume directory-level side effects (generated plot files) from earlier
// ones, so order is part of the contract. Any cell error fails the whole
// run immediately; there is no retry and no partial credit.
package executor

import (
	"context"
	"fmt"
	"os"

	"labpipe/internal/config"
	"labpipe/internal/ctxlog"
	"labpipe/internal/notebook"
	"labpipe/internal/runner"
)

// Executor executes and renders notebooks through the provisioned
// environment.
type Executor struct {
	run runner.Runner

	// envName is the provisioned environment all tool invocations
	// target; kernel is the registered kernel name cells execute on.
	envName string
	kernel  string
}

// New returns an Executor bound to the provisioned environment.
func New(r runner.Runner, envName, kernel string) *Executor {
	return &Executor{run: r, envName: envName, kernel: kernel}
}

// ExecuteAll processes every notebook in list order. The first failure
// aborts: no later notebook executes, and the caller must not publish.
func (e *Executor) ExecuteAll(ctx context.Context, notebooks []config.Notebook) error {
	for _, nb := range notebooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run budget exhausted before notebook %q: %w", nb.Name, err)
		}
		if err := e.executeOne(ctx, nb); err != nil {
			return fmt.Errorf("notebook %q: %w", nb.Name, err)
		}
	}
	return nil
}

// executeOne runs a single notebook end to end: execute all cells
// top-to-bottom persisting outputs in place, then render the updated
// document to its two presentation formats.
func (e *Executor) executeOne(ctx context.Context, nb config.Notebook) error {
	logger := ctxlog.FromContext(ctx).With("notebook", nb.Name)
	logger.Info("Executing notebook.", "path", nb.Path)

	if _, err := os.Stat(nb.Path); err != nil {
		return fmt.Errorf("notebook file missing: %w", err)
	}

	if _, err := e.run.Run(ctx, e.nbconvert(
		"--to", "notebook", "--execute", "--inplace",
		"--ExecutePreprocessor.kernel_name="+e.kernel,
		nb.Path,
	)); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	// The stored outputs were just rewritten in place; log the
	// normalized fingerprint so reruns can be audited for idempotence.
	doc, err := notebook.Load(nb.Path)
	if err != nil {
		return fmt.Errorf("executed notebook unreadable: %w", err)
	}
	fingerprint, err := doc.Fingerprint()
	if err != nil {
		return err
	}
	logger.Info("Notebook outputs persisted.", "code_cells", doc.CodeCellCount(), "fingerprint", fingerprint)

	if _, err := e.run.Run(ctx, e.nbconvert("--to", "html", nb.Path)); err != nil {
		return fmt.Errorf("page render failed: %w", err)
	}
	if _, err := e.run.Run(ctx, e.nbconvert("--to", "markdown", nb.Path)); err != nil {
		return fmt.Errorf("markup render failed: %w", err)
	}

	// Both renderings are part of the contract for a successfully
	// executed notebook; a conversion that exits zero without producing
	// its file is still a failure.
	htmlPath, mdPath := notebook.RenderedPaths(nb.Path)
	for _, rendered := range []string{htmlPath, mdPath} {
		if _, err := os.Stat(rendered); err != nil {
			return fmt.Errorf("rendered output missing after conversion: %w", err)
		}
	}

	logger.Info("Notebook rendered.", "html", htmlPath, "markdown", mdPath)
	return nil
}

// nbconvert builds a jupyter nbconvert invocation inside the provisioned
// environment.
func (e *Executor) nbconvert(args ...string) runner.Command {
	full := append([]string{"run", "--name", e.envName, "jupyter", "nbconvert"}, args...)
	return runner.Command{Name: "conda", Args: full}
}
