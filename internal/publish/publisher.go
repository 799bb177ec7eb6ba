package publish

import (
	"context"

	"labpipe/internal/config"
	"labpipe/internal/ctxlog"
)

// Publisher ties the bundle, upload and summary steps together for one
// run's staging directory.
type Publisher struct {
	stagingDir string
}

// New returns a Publisher staging bundles under the given run-scoped
// directory.
func New(stagingDir string) *Publisher {
	return &Publisher{stagingDir: stagingDir}
}

// Publish runs after all notebooks executed successfully: bundle the plot
// directory, upload the bundle if an upload target is configured, then
// append the markup renderings to the summary stream if one is named.
func (p *Publisher) Publish(ctx context.Context, cfg config.Publish, notebooks []config.Notebook) error {
	logger := ctxlog.FromContext(ctx)

	bundlePath, _, err := Bundle(ctx, cfg.PlotsDir, cfg.ArtifactName, p.stagingDir, cfg.FailOnEmpty)
	if err != nil {
		return err
	}

	if cfg.UploadURL != "" {
		if err := Upload(ctx, bundlePath, cfg.UploadURL); err != nil {
			return err
		}
	} else {
		logger.Info("No upload target configured; bundle kept locally.", "bundle", bundlePath)
	}

	if cfg.SummaryPath != "" {
		if err := AppendSummary(ctx, cfg.SummaryPath, notebooks); err != nil {
			return err
		}
	} else {
		logger.Debug("No summary stream configured; skipping summary step.")
	}

	return nil
}
