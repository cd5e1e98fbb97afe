// Package fetch retrieves source media from the transport's download
// URLs into scoped temporary files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/silviaroy/upscalerd/internal/logger"
)

type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch streams the resource at url into destPath. A partial file left
// by a failed download is removed before returning.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, destPath string) error {
	log := logger.FromContext(ctx)
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	written, err := io.Copy(dest, resp.Body)
	closeErr := dest.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("write %s: %w", destPath, err)
	}

	log.Debug("source fetched", "dest", destPath, "bytes", written, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
