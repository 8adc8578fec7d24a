package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"intelaccel/internal/fsutil"
	"intelaccel/internal/logging"
)

const userAgent = "intelaccel/1.0"

// Result describes the outcome of a fetch
type Result struct {
	Path    string
	Bytes   int64
	Skipped bool
	DryRun  bool
}

// ArchiveFetcher retrieves a remote archive into a local file
type ArchiveFetcher interface {
	// Fetch downloads url to dest unless dest already exists
	Fetch(ctx context.Context, url, dest string) (Result, error)
}

// HTTPFetcher implements ArchiveFetcher over HTTP(S)
type HTTPFetcher struct {
	client *http.Client
	logger *logging.Logger
}

// NewHTTPFetcher creates a fetcher whose requests give up after timeout
func NewHTTPFetcher(timeout time.Duration, logger *logging.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch downloads url to dest. An existing dest is reused without any
// network access. The body is written to dest+".part" and renamed once
// complete, so an interrupted download never looks like a finished one.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) (Result, error) {
	exists, err := fsutil.Exists(dest)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat %s: %w", dest, err)
	}
	if exists {
		f.logger.Info("fetch.skipped", "Archive already present, skipping download", map[string]interface{}{
			"path": dest,
		})
		return Result{Path: dest, Skipped: true}, nil
	}

	f.logger.Info("fetch.started", "Downloading archive", map[string]interface{}{
		"url":  url,
		"path": dest,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer fsutil.CloseWithError(resp.Body.Close, f.logger, "response body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("failed to download %s: unexpected status %s", url, resp.Status)
	}

	if err := fsutil.EnsureDirectory(filepath.Dir(dest)); err != nil {
		return Result{}, err
	}

	tmpPath := dest + ".part"
	// #nosec G304 -- dest is derived from validated configuration
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fsutil.DefaultFilePermissions)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			f.logger.Warn("fetch.cleanup_failed", "Failed to remove partial download", map[string]interface{}{
				"path":  tmpPath,
				"error": removeErr.Error(),
			})
		}
		if copyErr != nil {
			return Result{}, fmt.Errorf("failed to download %s: %w", url, copyErr)
		}
		return Result{}, fmt.Errorf("failed to write %s: %w", tmpPath, closeErr)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to download %s: got %d of %d bytes", url, written, resp.ContentLength)
	}

	if err := fsutil.CommitFile(tmpPath, dest, f.logger); err != nil {
		return Result{}, err
	}

	f.logger.Info("fetch.completed", "Archive downloaded", map[string]interface{}{
		"path":  dest,
		"bytes": written,
		"size":  humanize.Bytes(uint64(written)), // #nosec G115 -- io.Copy never returns a negative count
	})

	return Result{Path: dest, Bytes: written}, nil
}

// DryRunFetcher reports what would be downloaded without touching the network
type DryRunFetcher struct {
	out io.Writer
}

// NewDryRunFetcher creates a fetcher that prints planned downloads to out
func NewDryRunFetcher(out io.Writer) *DryRunFetcher {
	return &DryRunFetcher{out: out}
}

// Fetch reports the planned download. An existing dest is still reported as skipped.
func (f *DryRunFetcher) Fetch(_ context.Context, url, dest string) (Result, error) {
	exists, err := fsutil.Exists(dest)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat %s: %w", dest, err)
	}
	if exists {
		fmt.Fprintf(f.out, "[dry-run] archive present, skipping download: %s\n", dest)
		return Result{Path: dest, Skipped: true, DryRun: true}, nil
	}
	fmt.Fprintf(f.out, "[dry-run] download %s -> %s\n", url, dest)
	return Result{Path: dest, DryRun: true}, nil
}

// FileSHA256 returns the hex-encoded SHA-256 digest of the file at path
func FileSHA256(path string) (string, error) {
	// #nosec G304 -- path is the archive this tool downloaded
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 checks the file at path against the expected hex digest
func VerifySHA256(path, expected string) error {
	actual, err := FileSHA256(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", path, strings.ToLower(expected), actual)
	}
	return nil
}
