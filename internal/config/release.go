package config

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Release describes one versioned NPU driver download.
// FileName and DirName are both derived from Version, so a release bump
// moves the URL, archive name and extraction directory together.
type Release struct {
	Version  string
	URL      string
	FileName string
	DirName  string
	Format   string
}

// Descriptor derives the download descriptor from the configured release string
func (n NPUConfig) Descriptor() Release {
	stem := fmt.Sprintf("linux-npu-driver-v%s-ubuntu2404", n.Release)
	fileName := stem + "." + n.ArchiveFormat

	archiveURL := n.ArchiveURL
	if archiveURL == "" {
		archiveURL = strings.TrimRight(n.BaseURL, "/") + "/v" + n.Release + "/" + fileName
	}

	return Release{
		Version:  n.Release,
		URL:      archiveURL,
		FileName: fileName,
		DirName:  stem,
		Format:   n.ArchiveFormat,
	}
}

// ArchivePath returns where the archive lives inside the scratch directory
func (r Release) ArchivePath(scratchDir string) string {
	return filepath.Join(scratchDir, r.FileName)
}

// ExtractDir returns the extraction directory inside the scratch directory
func (r Release) ExtractDir(scratchDir string) string {
	return filepath.Join(scratchDir, r.DirName)
}

// urlFileName returns the last path segment of a URL
func urlFileName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return path.Base(u.Path), nil
}
