package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"intelaccel/internal/logging"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(10*time.Second, logging.NewLogger(logging.LevelError))
}

func TestHTTPFetcher_Downloads(t *testing.T) {
	payload := []byte("npu driver archive contents")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "scratch", "driver.tar.gz")
	res, err := newTestFetcher().Fetch(context.Background(), server.URL+"/v1.13.0/driver.tar.gz", dest)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if res.Skipped {
		t.Error("expected a real download")
	}
	if res.Bytes != int64(len(payload)) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("content = %q", got)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should not remain after success")
	}
}

func TestHTTPFetcher_SkipsExistingArchive(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "driver.tar.gz")
	if err := os.WriteFile(dest, []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := newTestFetcher().Fetch(context.Background(), server.URL, dest)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.Skipped {
		t.Error("expected Skipped for existing archive")
	}
	if hits.Load() != 0 {
		t.Errorf("expected no network requests, got %d", hits.Load())
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "cached" {
		t.Errorf("existing archive was modified: %q", got)
	}
}

func TestHTTPFetcher_RejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "driver.tar.gz")
	_, err := newTestFetcher().Fetch(context.Background(), server.URL, dest)
	if err == nil {
		t.Fatal("Fetch() should fail on 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want status in message", err)
	}

	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no archive should be created on failure")
	}
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "driver.tar.gz")
	if _, err := newTestFetcher().Fetch(ctx, server.URL, dest); err == nil {
		t.Fatal("Fetch() should fail with a canceled context")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no archive should be created when canceled")
	}
}

func TestDryRunFetcher(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	f := NewDryRunFetcher(&out)

	dest := filepath.Join(dir, "driver.tar.gz")
	res, err := f.Fetch(context.Background(), "https://example.invalid/driver.tar.gz", dest)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.DryRun || res.Skipped {
		t.Errorf("Result = %+v", res)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dry run must not create the archive")
	}
	if !strings.Contains(out.String(), "[dry-run] download https://example.invalid/driver.tar.gz") {
		t.Errorf("output = %q", out.String())
	}

	if err := os.WriteFile(dest, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, _ = f.Fetch(context.Background(), "https://example.invalid/driver.tar.gz", dest)
	if !res.Skipped {
		t.Error("dry run should report existing archive as skipped")
	}
}

func TestVerifySHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.tar.gz")
	content := []byte("archive")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if err := VerifySHA256(path, digest); err != nil {
		t.Errorf("VerifySHA256() error = %v", err)
	}
	if err := VerifySHA256(path, strings.ToUpper(digest)); err != nil {
		t.Errorf("VerifySHA256() should accept upper-case digests: %v", err)
	}

	wrong := strings.Repeat("0", 64)
	err := VerifySHA256(path, wrong)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("VerifySHA256() error = %v, want mismatch", err)
	}
}

func TestFileSHA256_MissingFile(t *testing.T) {
	if _, err := FileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
