package diag

import (
	"time"

	"intelaccel/internal/config"
	"intelaccel/internal/verify"
)

// Manifest represents the support bundle manifest
type Manifest struct {
	Timestamp string         `json:"timestamp"`
	Host      string         `json:"host"`
	Version   string         `json:"intelaccel_version"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile represents a file in the support bundle
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Options configures bundle collection
type Options struct {
	Config     config.Config
	Verify     *verify.Report
	OutputPath string
	Version    string

	// host files, overridable in tests
	KernelRelease string
}

// DefaultOutputPath names a bundle after the time it was created
func DefaultOutputPath(now time.Time) string {
	return "intelaccel-diag-" + now.UTC().Format("20060102-150405") + ".zip"
}
