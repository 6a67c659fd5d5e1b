// Package source fetches the ECDC dataset and turns it into domain records.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

type Downloader struct {
	Client *http.Client
	Logger *zap.Logger
}

func NewDownloader(timeout time.Duration, logger *zap.Logger) *Downloader {
	return &Downloader{
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Fetch copies the body at url into dest. The file is replaced atomically,
// so a failed download leaves any previous copy intact.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("rename into %s: %w", dest, err)
	}

	d.Logger.Info("source_downloaded", zap.String("url", url), zap.String("path", dest), zap.Int64("bytes", n))
	return n, nil
}
