package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"intelaccel/internal/fsutil"
)

const (
	// FormatTarGz identifies a gzip-compressed tarball.
	FormatTarGz = "tar.gz"
	// FormatTarZst identifies a zstd-compressed tarball.
	FormatTarZst = "tar.zst"
	// FormatZip identifies a zip archive.
	FormatZip = "zip"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateScratchDir()...)
	errors = append(errors, c.validateGPU()...)
	errors = append(errors, c.validateNPU()...)
	errors = append(errors, c.validateVerify()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateHTTP()...)

	return errors
}

func (c *Config) validateScratchDir() []ValidationError {
	dir := c.ScratchDir
	if dir == "" {
		return []ValidationError{{Path: "scratch_dir", Message: "must not be empty"}}
	}

	if !filepath.IsAbs(dir) && !strings.HasPrefix(dir, "~/") {
		return []ValidationError{{
			Path:    "scratch_dir",
			Message: fmt.Sprintf("must be absolute or start with ~/, got '%s'", dir),
		}}
	}

	// the cleanup stage deletes this tree recursively
	if !safeScratchDir(filepath.Clean(fsutil.ExpandHome(dir))) {
		return []ValidationError{{
			Path:    "scratch_dir",
			Message: fmt.Sprintf("refusing to use '%s' as scratch directory", dir),
		}}
	}

	return nil
}

// safeScratchDir rejects "/", the home directory and every ancestor of it
func safeScratchDir(dir string) bool {
	if !filepath.IsAbs(dir) || dir == "/" {
		return false
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(dir, filepath.Clean(home))
	if err != nil {
		return true
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c *Config) validateGPU() []ValidationError {
	var errors []ValidationError

	if len(c.GPU.Packages) == 0 {
		errors = append(errors, ValidationError{Path: "gpu.packages", Message: "must list at least one package"})
	}
	for i, pkg := range c.GPU.Packages {
		if strings.TrimSpace(pkg) == "" || strings.HasPrefix(pkg, "-") {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("gpu.packages[%d]", i),
				Message: fmt.Sprintf("invalid package name '%s'", pkg),
			})
		}
	}

	if strings.TrimSpace(c.GPU.Group) == "" {
		errors = append(errors, ValidationError{Path: "gpu.group", Message: "must not be empty"})
	}

	return errors
}

func (c *Config) validateNPU() []ValidationError {
	var errors []ValidationError
	npu := c.NPU

	if npu.Release == "" || strings.ContainsAny(npu.Release, "/ ") {
		errors = append(errors, ValidationError{
			Path:    "npu.release",
			Message: fmt.Sprintf("must be a non-empty version string without '/' or spaces, got '%s'", npu.Release),
		})
	}

	validFormats := []string{FormatTarGz, FormatTarZst, FormatZip}
	if !contains(validFormats, npu.ArchiveFormat) {
		errors = append(errors, ValidationError{
			Path:    "npu.archive_format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, npu.ArchiveFormat),
		})
	}

	if npu.ArchiveURL == "" {
		if !isHTTPURL(npu.BaseURL) {
			errors = append(errors, ValidationError{
				Path:    "npu.base_url",
				Message: fmt.Sprintf("must be an http(s) URL, got '%s'", npu.BaseURL),
			})
		}
	} else {
		errors = append(errors, validateArchiveURL(npu)...)
	}

	installer := filepath.Clean(npu.Installer)
	if npu.Installer == "" || filepath.IsAbs(installer) || installer == ".." || strings.HasPrefix(installer, "../") {
		errors = append(errors, ValidationError{
			Path:    "npu.installer",
			Message: fmt.Sprintf("must be a path inside the extracted archive, got '%s'", npu.Installer),
		})
	}

	if npu.SHA256 != "" && !isHexDigest(npu.SHA256) {
		errors = append(errors, ValidationError{
			Path:    "npu.sha256",
			Message: "must be a 64-character hex SHA-256 digest",
		})
	}

	return errors
}

// validateArchiveURL keeps an overridden URL consistent with the derived archive name
func validateArchiveURL(npu NPUConfig) []ValidationError {
	if !isHTTPURL(npu.ArchiveURL) {
		return []ValidationError{{
			Path:    "npu.archive_url",
			Message: fmt.Sprintf("must be an http(s) URL, got '%s'", npu.ArchiveURL),
		}}
	}

	name, err := urlFileName(npu.ArchiveURL)
	if err != nil {
		return []ValidationError{{Path: "npu.archive_url", Message: err.Error()}}
	}

	want := npu.Descriptor().FileName
	if name != want {
		return []ValidationError{{
			Path:    "npu.archive_url",
			Message: fmt.Sprintf("file name '%s' does not match release archive '%s'", name, want),
		}}
	}

	return nil
}

func (c *Config) validateVerify() []ValidationError {
	var errors []ValidationError

	for i, tool := range c.Verify.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("verify.tools[%d].name", i),
				Message: "must not be empty",
			})
		}
	}

	if c.Verify.KernelModule == "" {
		errors = append(errors, ValidationError{Path: "verify.kernel_module", Message: "must not be empty"})
	}
	if c.Verify.DeviceNode == "" {
		errors = append(errors, ValidationError{Path: "verify.device_node", Message: "must not be empty"})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

func (c *Config) validateHTTP() []ValidationError {
	if c.HTTP.TimeoutSeconds > 0 {
		return nil
	}

	return []ValidationError{{
		Path:    "http.timeout_seconds",
		Message: fmt.Sprintf("must be positive, got %d", c.HTTP.TimeoutSeconds),
	}}
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
