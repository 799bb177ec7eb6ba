package executor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"labpipe/internal/config"
	"labpipe/internal/executor"
	"labpipe/internal/notebook"
	"labpipe/internal/runner"
	"labpipe/internal/testutil"
)

// writeNotebooks materializes minimal notebook files and returns their
// configs in order.
func writeNotebooks(t *testing.T, names ...string) []config.Notebook {
	t.Helper()

	dir := t.TempDir()
	notebooks := make([]config.Notebook, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name+".ipynb")
		require.NoError(t, os.WriteFile(path, []byte(testutil.MinimalNotebook), 0o644))
		notebooks = append(notebooks, config.Notebook{Name: name, Path: path})
	}
	return notebooks
}

// renderingRunner scripts nbconvert renders to actually create their
// output files, the way the real tool does.
func renderingRunner() *testutil.FakeRunner {
	fake := testutil.NewFakeRunner()
	fake.Handle("--to html", func(cmd runner.Command) (runner.Result, error) {
		nbPath := cmd.Args[len(cmd.Args)-1]
		htmlPath, _ := notebook.RenderedPaths(nbPath)
		return runner.Result{}, os.WriteFile(htmlPath, []byte("<html/>"), 0o644)
	})
	fake.Handle("--to markdown", func(cmd runner.Command) (runner.Result, error) {
		nbPath := cmd.Args[len(cmd.Args)-1]
		_, mdPath := notebook.RenderedPaths(nbPath)
		return runner.Result{}, os.WriteFile(mdPath, []byte("# rendered\n"), 0o644)
	})
	return fake
}

func TestExecuteAll_SequentialOrder(t *testing.T) {
	t.Parallel()

	notebooks := writeNotebooks(t, "main", "concentrationPlots")
	fake := renderingRunner()

	err := executor.New(fake, "eis-env", "labpipe-kernel").ExecuteAll(context.Background(), notebooks)
	require.NoError(t, err)

	lines := fake.CommandLines()
	require.Len(t, lines, 6, "three nbconvert invocations per notebook")

	// All of main's steps strictly precede all of concentrationPlots'.
	require.Contains(t, lines[0], "--execute --inplace")
	require.Contains(t, lines[0], "main.ipynb")
	require.Contains(t, lines[0], "kernel_name=labpipe-kernel")
	require.Contains(t, lines[1], "--to html")
	require.Contains(t, lines[2], "--to markdown")
	require.Contains(t, lines[3], "concentrationPlots.ipynb")
	require.Contains(t, lines[3], "--execute --inplace")

	for _, line := range lines {
		require.Contains(t, line, "conda run --name eis-env jupyter nbconvert")
	}
}

func TestExecuteAll_RenderPairExists(t *testing.T) {
	t.Parallel()

	notebooks := writeNotebooks(t, "main")
	fake := renderingRunner()

	err := executor.New(fake, "eis-env", "k").ExecuteAll(context.Background(), notebooks)
	require.NoError(t, err)

	htmlPath, mdPath := notebook.RenderedPaths(notebooks[0].Path)
	require.FileExists(t, htmlPath)
	require.FileExists(t, mdPath)
}

func TestExecuteAll_CellErrorFailsFast(t *testing.T) {
	t.Parallel()

	notebooks := writeNotebooks(t, "main", "concentrationPlots")
	fake := renderingRunner()
	fake.Handle("concentrationPlots.ipynb", func(cmd runner.Command) (runner.Result, error) {
		if strings.Contains(cmd.String(), "--execute") {
			return runner.Result{ExitCode: 1}, errors.New("CellExecutionError in cell 3")
		}
		return runner.Result{}, nil
	})

	err := executor.New(fake, "eis-env", "k").ExecuteAll(context.Background(), notebooks)
	require.Error(t, err)
	require.Contains(t, err.Error(), `notebook "concentrationPlots"`)
	require.Contains(t, err.Error(), "execution failed")

	// main was fully processed and rendered; nothing past the failing
	// execution ran.
	htmlPath, mdPath := notebook.RenderedPaths(notebooks[0].Path)
	require.FileExists(t, htmlPath)
	require.FileExists(t, mdPath)

	lines := fake.CommandLines()
	require.Len(t, lines, 4, "no render may run for the failed notebook")
	require.Contains(t, lines[3], "concentrationPlots.ipynb")
}

func TestExecuteAll_FirstNotebookFailureStopsEverything(t *testing.T) {
	t.Parallel()

	notebooks := writeNotebooks(t, "main", "concentrationPlots")
	fake := testutil.NewFakeRunner()
	fake.FailOn("--execute", errors.New("kernel died"))

	err := executor.New(fake, "eis-env", "k").ExecuteAll(context.Background(), notebooks)
	require.Error(t, err)
	require.Contains(t, err.Error(), `notebook "main"`)
	require.Len(t, fake.Commands(), 1, "the second notebook must never start")
}

func TestExecuteAll_MissingRenderIsFailure(t *testing.T) {
	t.Parallel()

	// nbconvert exits zero but never writes the markdown file.
	notebooks := writeNotebooks(t, "main")
	fake := testutil.NewFakeRunner()
	fake.Handle("--to html", func(cmd runner.Command) (runner.Result, error) {
		nbPath := cmd.Args[len(cmd.Args)-1]
		htmlPath, _ := notebook.RenderedPaths(nbPath)
		return runner.Result{}, os.WriteFile(htmlPath, []byte("<html/>"), 0o644)
	})

	err := executor.New(fake, "eis-env", "k").ExecuteAll(context.Background(), notebooks)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rendered output missing")
}

func TestExecuteAll_MissingNotebookFile(t *testing.T) {
	t.Parallel()

	notebooks := []config.Notebook{{Name: "ghost", Path: filepath.Join(t.TempDir(), "ghost.ipynb")}}
	fake := testutil.NewFakeRunner()

	err := executor.New(fake, "eis-env", "k").ExecuteAll(context.Background(), notebooks)
	require.Error(t, err)
	require.Contains(t, err.Error(), "notebook file missing")
	require.Empty(t, fake.Commands())
}

func TestExecuteAll_CancelledBudget(t *testing.T) {
	t.Parallel()

	notebooks := writeNotebooks(t, "main")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executor.New(testutil.NewFakeRunner(), "eis-env", "k").ExecuteAll(ctx, notebooks)
	require.Error(t, err)
	require.Contains(t, err.Error(), "run budget exhausted")
}
