package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"labpipe/internal/app"
	"labpipe/internal/hcl"
)

// HarnessResult holds the outcomes of a pipeline integration test run.
type HarnessResult struct {
	Err       error
	LogOutput string
	App       *app.App
	Dir       string
}

// MinimalNotebook is a syntactically valid single-cell notebook document
// for tests that only care about the file's existence and shape.
const MinimalNotebook = `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "source": ["print(1)"],
   "outputs": []
  }
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}
`

// MinimalManifest is a valid environment manifest for tests that do not
// assert on provisioning details.
const MinimalManifest = `name: labpipe-test
channels:
  - conda-forge
dependencies:
  - python=3.11
  - pandas=2.2.3
`

// WriteFiles materializes the given relative-path→content map under a
// fresh temp directory and returns its root.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RunPipelineTest assembles the given file tree in a temp directory,
// loads "pipeline.hcl" from it, and runs the app against the fake runner.
// The working directory is switched to the temp root so relative paths in
// the pipeline file resolve the way a CI checkout would.
func RunPipelineTest(t *testing.T, files map[string]string, fake *FakeRunner) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	appConfig, err := app.NewConfig(app.Config{
		PipelinePath: "pipeline.hcl",
		LogFormat:    "text",
		LogLevel:     "debug",
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	pipeApp := app.New(logBuffer, appConfig, hcl.NewLoader(),
		app.WithRunner(fake),
		app.WithStagingRoot(filepath.Join(dir, ".staging")))

	runErr := pipeApp.Run(context.Background())

	return &HarnessResult{
		Err:       runErr,
		LogOutput: logBuffer.String(),
		App:       pipeApp,
		Dir:       dir,
	}
}
