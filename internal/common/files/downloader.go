// Package files provides the attachment downloader used before uploading
// résumé files to the tracking system.
package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"huntflow-sync/internal/common/errors"

	"golang.org/x/sync/errgroup"
)

const downloadConcurrency = 5

type Downloader struct {
	httpClient *http.Client
}

func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Download fetches every URL concurrently (bounded) and returns the bodies
// in input order. Any failed download fails the whole batch.
func (d *Downloader) Download(ctx context.Context, urls []string) ([][]byte, error) {
	bodies := make([][]byte, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			data, err := d.downloadOne(gctx, u)
			if err != nil {
				return err
			}
			bodies[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return bodies, nil
}

func (d *Downloader) downloadOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewFileDownloadError(url, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewFileDownloadError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFileDownloadError(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewFileDownloadError(url, err)
	}
	return data, nil
}
