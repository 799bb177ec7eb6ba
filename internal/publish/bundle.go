// Package publish collects the run's outputs after every notebook has
// executed: it bundles the plot directory into a named zip artifact,
// optionally uploads it, and appends the plain-markup renderings to the
// CI run's summary stream. Publishing only reads pipeline state; a
// failure here fails the run but corrupts nothing.
package publish

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"labpipe/internal/ctxlog"
	"labpipe/internal/fsutil"
)

// Bundle zips every file currently under plotsDir into
// <stagingDir>/<artifactName>.zip and returns the bundle path and the
// number of files included. The bundle content is exactly the set of
// files present at the moment of the scan.
//
// An empty or missing plot directory produces an empty bundle and a
// warning unless failOnEmpty is set, in which case it is fatal; a run
// whose plotting code silently produced nothing is then caught here.
func Bundle(ctx context.Context, plotsDir, artifactName, stagingDir string, failOnEmpty bool) (string, int, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindAllFiles(plotsDir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to scan plot directory %s: %w", plotsDir, err)
	}
	if len(files) == 0 {
		if failOnEmpty {
			return "", 0, fmt.Errorf("plot directory %s is empty or missing and fail_on_empty is set", plotsDir)
		}
		logger.Warn("Plot directory is empty or missing; bundling an empty artifact.", "dir", plotsDir)
	}

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create staging directory: %w", err)
	}
	bundlePath := filepath.Join(stagingDir, artifactName+".zip")

	out, err := os.Create(bundlePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create bundle %s: %w", bundlePath, err)
	}

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addToBundle(zw, plotsDir, file); err != nil {
			zw.Close()
			out.Close()
			return "", 0, err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return "", 0, fmt.Errorf("failed to finalize bundle %s: %w", bundlePath, err)
	}
	if err := out.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to flush bundle %s: %w", bundlePath, err)
	}

	logger.Info("Artifact bundled.", "bundle", bundlePath, "files", len(files))
	return bundlePath, len(files), nil
}

// addToBundle stores one file under its path relative to the plot root.
func addToBundle(zw *zip.Writer, root, file string) error {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return fmt.Errorf("failed to resolve bundle entry name for %s: %w", file, err)
	}

	in, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open plot file %s: %w", file, err)
	}
	defer in.Close()

	entry, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return fmt.Errorf("failed to create bundle entry %s: %w", rel, err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return fmt.Errorf("failed to bundle %s: %w", file, err)
	}

	return nil
}
