package publish

import (
	"archive/zip"
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"labpipe/internal/config"
)

// writeTree materializes the given relative-path -> content files under a
// fresh temp dir and returns it.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func bundleEntries(t *testing.T, bundlePath string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(bundlePath)
	require.NoError(t, err)
	defer zr.Close()

	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func TestBundle_ContainsExactlyThePlotTree(t *testing.T) {
	t.Parallel()

	plots := writeTree(t, map[string]string{
		"nyquist_rt.png":         "png-1",
		"bode/phase_-40.png":     "png-2",
		"bode/magnitude_rt.svg":  "svg-1",
		"tables/summary_all.csv": "csv-1",
	})

	bundlePath, count, err := Bundle(context.Background(), plots, "plots", t.TempDir(), false)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.Equal(t, "plots.zip", filepath.Base(bundlePath))

	require.Equal(t, map[string]string{
		"nyquist_rt.png":         "png-1",
		"bode/phase_-40.png":     "png-2",
		"bode/magnitude_rt.svg":  "svg-1",
		"tables/summary_all.csv": "csv-1",
	}, bundleEntries(t, bundlePath))
}

func TestBundle_EmptyDirWarnsByDefault(t *testing.T) {
	t.Parallel()

	bundlePath, count, err := Bundle(context.Background(), t.TempDir(), "plots", t.TempDir(), false)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, bundleEntries(t, bundlePath), "bundle must still exist, just empty")
}

func TestBundle_MissingDirWarnsByDefault(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "never-created")
	bundlePath, count, err := Bundle(context.Background(), missing, "plots", t.TempDir(), false)
	require.NoError(t, err)
	require.Zero(t, count)
	require.FileExists(t, bundlePath)
}

func TestBundle_EmptyDirFatalWhenConfigured(t *testing.T) {
	t.Parallel()

	_, _, err := Bundle(context.Background(), t.TempDir(), "plots", t.TempDir(), true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "fail_on_empty")
}

func TestUpload_PutsBundleToPresignedURL(t *testing.T) {
	t.Parallel()

	plots := writeTree(t, map[string]string{"a.png": "payload"})
	bundlePath, _, err := Bundle(context.Background(), plots, "plots", t.TempDir(), false)
	require.NoError(t, err)

	var gotMethod, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	require.NoError(t, Upload(context.Background(), bundlePath, server.URL+"/bundles/plots.zip?sig=abc"))

	require.Equal(t, http.MethodPut, gotMethod)

	wantContentType := mime.TypeByExtension(".zip")
	if wantContentType == "" {
		wantContentType = "application/octet-stream"
	}
	require.Equal(t, wantContentType, gotContentType)

	want, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	require.Equal(t, want, gotBody)
}

func TestUpload_NonOKStatusIsFatal(t *testing.T) {
	t.Parallel()

	plots := writeTree(t, map[string]string{"a.png": "payload"})
	bundlePath, _, err := Bundle(context.Background(), plots, "plots", t.TempDir(), false)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signature expired", http.StatusForbidden)
	}))
	defer server.Close()

	err = Upload(context.Background(), bundlePath, server.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestAppendSummary_ConcatenatesInExecutionOrder(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{
		"main.md":               "main rendering\n",
		"concentrationPlots.md": "concentration rendering\n",
	})
	notebooks := []config.Notebook{
		{Name: "main", Path: filepath.Join(dir, "main.ipynb")},
		{Name: "concentrationPlots", Path: filepath.Join(dir, "concentrationPlots.ipynb")},
	}

	summaryPath := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, os.WriteFile(summaryPath, []byte("# Earlier step\n"), 0o644))

	require.NoError(t, AppendSummary(context.Background(), summaryPath, notebooks))

	got, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	require.Equal(t,
		"# Earlier step\n"+
			"## main\n\nmain rendering\n\n"+
			"## concentrationPlots\n\nconcentration rendering\n\n",
		string(got))
}

func TestAppendSummary_MissingRenderingIsFatal(t *testing.T) {
	t.Parallel()

	notebooks := []config.Notebook{
		{Name: "main", Path: filepath.Join(t.TempDir(), "main.ipynb")},
	}

	err := AppendSummary(context.Background(), filepath.Join(t.TempDir(), "summary.md"), notebooks)
	require.Error(t, err)
	require.Contains(t, err.Error(), `markup rendering for notebook "main" missing`)
}

func TestPublish_EndToEnd(t *testing.T) {
	t.Parallel()

	plots := writeTree(t, map[string]string{"nyquist.png": "png"})
	nbDir := writeTree(t, map[string]string{"main.md": "rendering\n"})
	summaryPath := filepath.Join(t.TempDir(), "summary.md")

	var uploads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads++
	}))
	defer server.Close()

	cfg := config.Publish{
		PlotsDir:     plots,
		ArtifactName: "plots",
		UploadURL:    server.URL,
		SummaryPath:  summaryPath,
	}
	notebooks := []config.Notebook{{Name: "main", Path: filepath.Join(nbDir, "main.ipynb")}}

	require.NoError(t, New(t.TempDir()).Publish(context.Background(), cfg, notebooks))

	require.Equal(t, 1, uploads)
	got, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	require.Equal(t, "## main\n\nrendering\n\n", string(got))
}

func TestPublish_SkipsOptionalSteps(t *testing.T) {
	t.Parallel()

	plots := writeTree(t, map[string]string{"a.png": "png"})
	cfg := config.Publish{PlotsDir: plots, ArtifactName: "plots"}

	require.NoError(t, New(t.TempDir()).Publish(context.Background(), cfg, nil))
}
