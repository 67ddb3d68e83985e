package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"fabfetch/internal/netx"
)

// DownloadResult tags the outcome of one asset download.
type DownloadResult string

const (
	// DownloadSuccess means the asset was written to disk.
	DownloadSuccess DownloadResult = "SUCCESS"
	// DownloadAbsent means the CDN definitively has no such asset (HTTP 403).
	// It is a recorded outcome, not an error.
	DownloadAbsent DownloadResult = "NOT_FOUND"
	// DownloadTransientError means retries were exhausted on recoverable
	// failures. Fatal to this one asset only.
	DownloadTransientError DownloadResult = "CONNECTION_ERROR"
)

// errMediaAbsent is internal to the retry loop; it maps to DownloadAbsent.
var errMediaAbsent = errors.New("media does not exist")

// downloadAttempts is the total tries per asset: one initial request plus two
// retries for transient failures. 403 responses never consume a retry.
const downloadAttempts = 3

// Downloader materializes media references to files on disk.
type Downloader struct {
	net   *netx.Client
	retry netx.RetryPolicy
}

// NewDownloader builds a Downloader over the given HTTP client.
func NewDownloader(net *netx.Client) *Downloader {
	return &Downloader{
		net:   net,
		retry: netx.RetryPolicy{Attempts: downloadAttempts, BaseDelay: 300 * time.Millisecond, MaxDelay: 2 * time.Second},
	}
}

// Download writes one media reference to fullPath, creating folder first.
//
// A reference that still carries the probe's body stream is written directly
// and never re-requested. Otherwise the URL is fetched with the retry budget;
// a 403 short-circuits to DownloadAbsent without retrying.
func (d *Downloader) Download(ctx context.Context, ref MediaReference, folder, fullPath string) (DownloadResult, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return DownloadTransientError, err
	}

	if ref.Body != nil {
		defer ref.Body.Close()
		if err := writeStream(ref.Body, fullPath); err != nil {
			return DownloadTransientError, err
		}
		return DownloadSuccess, nil
	}

	resp, err := netx.RetryOperation(ctx, d.retry, func() (*http.Response, error) {
		resp, err := d.net.GetStream(ctx, ref.URL, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusForbidden {
			_ = resp.Body.Close()
			return nil, netx.Permanent(errMediaAbsent)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, ref.URL)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, errMediaAbsent) {
			return DownloadAbsent, nil
		}
		return DownloadTransientError, err
	}
	defer resp.Body.Close()

	if err := writeStream(resp.Body, fullPath); err != nil {
		return DownloadTransientError, err
	}
	return DownloadSuccess, nil
}

// writeStream copies src into fullPath via a uniquely named temp file so a
// failed copy never leaves a truncated asset at the final name.
func writeStream(src io.Reader, fullPath string) error {
	tmpPath := fullPath + "." + uuid.NewString() + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, fullPath)
}
