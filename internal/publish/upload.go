package publish

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"labpipe/internal/ctxlog"
)

// httpClient is shared across uploads to reuse TCP connections.
var httpClient = &http.Client{}

// Upload PUTs the bundle to a pre-signed URL on the CI host's artifact
// store. The pipeline is a pure client of the store: upload only, no
// read-back, retention left to the store's default expiry. A non-OK
// response is fatal to the run's success status.
func Upload(ctx context.Context, bundlePath, uploadURL string) error {
	logger := ctxlog.FromContext(ctx).With("bundle", bundlePath)

	file, err := os.Open(bundlePath)
	if err != nil {
		return fmt.Errorf("failed to open bundle %s: %w", bundlePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat bundle %s: %w", bundlePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(bundlePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading artifact bundle.", "size", stat.Size(), "contentType", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("artifact upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact upload rejected with status: %s", resp.Status)
	}

	logger.Info("Artifact bundle uploaded.", "status", resp.Status)
	return nil
}
