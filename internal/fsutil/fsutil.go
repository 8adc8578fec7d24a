package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"intelaccel/internal/logging"
)

const (
	// DefaultDirPermissions is the permission used for the scratch directory
	DefaultDirPermissions = 0o755
	// DefaultFilePermissions is the permission for files written by the installer
	DefaultFilePermissions = 0o644
)

// ExpandHome replaces a leading "~/" with the current user's home directory.
// Paths without the prefix are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// EnsureDirectory creates the directory if it doesn't exist.
// An existing directory is not an error.
func EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists. Errors other than "not exist" are returned.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// RemoveTree deletes path recursively. A missing path is not an error.
// Refuses to operate on the filesystem root.
func RemoveTree(path string) error {
	clean := filepath.Clean(path)
	if clean == "/" || clean == "." || clean == "" {
		return fmt.Errorf("refusing to remove %q", path)
	}
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("failed to remove %s: %w", clean, err)
	}
	return nil
}

// CommitFile renames a fully written temp file onto its final path.
// The temp file is removed when the rename fails.
func CommitFile(tmpPath, path string, logger *logging.Logger) error {
	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warn("fsutil.cleanup_failed", "Failed to remove temp file", map[string]interface{}{
				"path":  tmpPath,
				"error": removeErr.Error(),
			})
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// CloseWithError closes a resource and logs any error.
// This is useful for defer statements where close errors should be handled.
func CloseWithError(closer func() error, logger *logging.Logger, resource string) {
	if err := closer(); err != nil {
		logger.Warn("fsutil.close_failed", fmt.Sprintf("Failed to close %s", resource), map[string]interface{}{
			"error": err.Error(),
		})
	}
}
