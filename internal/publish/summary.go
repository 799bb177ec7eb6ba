package publish

import (
	"context"
	"fmt"
	"os"

	"labpipe/internal/config"
	"labpipe/internal/ctxlog"
	"labpipe/internal/notebook"
)

// AppendSummary concatenates the plain-markup rendering of each notebook,
// in execution order, onto the CI run's human-readable summary stream.
// The stream is append-only; earlier content from other steps is kept.
func AppendSummary(ctx context.Context, summaryPath string, notebooks []config.Notebook) error {
	logger := ctxlog.FromContext(ctx)

	sink, err := os.OpenFile(summaryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open summary stream %s: %w", summaryPath, err)
	}
	defer sink.Close()

	for _, nb := range notebooks {
		_, mdPath := notebook.RenderedPaths(nb.Path)
		rendered, err := os.ReadFile(mdPath)
		if err != nil {
			return fmt.Errorf("markup rendering for notebook %q missing: %w", nb.Name, err)
		}

		if _, err := fmt.Fprintf(sink, "## %s\n\n", nb.Name); err != nil {
			return fmt.Errorf("failed to append to summary stream: %w", err)
		}
		if _, err := sink.Write(rendered); err != nil {
			return fmt.Errorf("failed to append to summary stream: %w", err)
		}
		if _, err := fmt.Fprintln(sink); err != nil {
			return fmt.Errorf("failed to append to summary stream: %w", err)
		}
	}

	logger.Info("Summary stream updated.", "path", summaryPath, "notebooks", len(notebooks))
	return nil
}
