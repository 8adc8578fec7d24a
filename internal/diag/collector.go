package diag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intelaccel/internal/config"
	"intelaccel/internal/logging"
)

const kernelReleaseFile = "/proc/sys/kernel/osrelease"

// Collector gathers support bundle artifacts. A missing source is logged
// and skipped; it never fails the bundle.
type Collector struct {
	opts     Options
	redactor *Redactor
	logger   *logging.Logger
}

// NewCollector creates a new bundle collector
func NewCollector(opts Options, logger *logging.Logger) *Collector {
	if opts.KernelRelease == "" {
		opts.KernelRelease = kernelReleaseFile
	}
	return &Collector{
		opts:     opts,
		redactor: NewRedactor(),
		logger:   logger,
	}
}

// CollectLog gathers the installer log file, redacted
func (c *Collector) CollectLog() (map[string][]byte, error) {
	return c.collectFile(c.opts.Config.Logging.File, "logs/install.log", "log")
}

// CollectHistory gathers the run history file, redacted
func (c *Collector) CollectHistory() (map[string][]byte, error) {
	return c.collectFile(c.opts.Config.Metrics.History, "history/runs.jsonl", "history")
}

func (c *Collector) collectFile(path, name, kind string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	if path == "" {
		return files, nil
	}

	content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from the loaded configuration
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn("diag.collect.missing", "File not found", map[string]interface{}{
				"kind": kind,
				"path": path,
			})
			return files, nil
		}
		return files, fmt.Errorf("failed to read %s: %w", kind, err)
	}

	files[name] = []byte(c.redact(kind, string(content)))
	c.logger.Info("diag.collect.complete", "Collected file", map[string]interface{}{
		"kind":       kind,
		"size_bytes": len(content),
	})
	return files, nil
}

// CollectConfig renders the effective configuration, redacted
func (c *Collector) CollectConfig() (map[string][]byte, error) {
	files := make(map[string][]byte)

	data, err := config.Marshal(c.opts.Config)
	if err != nil {
		return files, fmt.Errorf("failed to render config: %w", err)
	}
	files["config/effective.yaml"] = []byte(c.redact("config", string(data)))
	return files, nil
}

// CollectVerify stores the verification report when one was produced
func (c *Collector) CollectVerify() (map[string][]byte, error) {
	files := make(map[string][]byte)
	if c.opts.Verify == nil {
		return files, nil
	}

	data, err := json.MarshalIndent(c.opts.Verify, "", "  ")
	if err != nil {
		return files, fmt.Errorf("failed to marshal verify report: %w", err)
	}
	files["verify.json"] = data
	return files, nil
}

// CollectSystemInfo gathers host, kernel and distribution information
func (c *Collector) CollectSystemInfo() (map[string][]byte, error) {
	files := make(map[string][]byte)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	kernel := "unknown"
	if data, err := os.ReadFile(c.opts.KernelRelease); err == nil {
		kernel = strings.TrimSpace(string(data))
	}

	sysInfo := map[string]interface{}{
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"host":               hostname,
		"kernel":             kernel,
		"intelaccel_version": c.opts.Version,
		"npu_release":        c.opts.Config.NPU.Release,
	}
	sysInfoJSON, err := json.MarshalIndent(sysInfo, "", "  ")
	if err != nil {
		return files, fmt.Errorf("failed to marshal system info: %w", err)
	}
	files["system_info.json"] = sysInfoJSON

	if release := c.opts.Config.OS.ReleaseFile; release != "" {
		if data, err := os.ReadFile(filepath.Clean(release)); err == nil { // #nosec G304 -- path comes from the loaded configuration
			files["system/os-release"] = data
		}
	}

	c.logger.Info("diag.collect.sysinfo.complete", "System info collection complete", nil)
	return files, nil
}

func (c *Collector) redact(kind, content string) string {
	redacted := c.redactor.Redact(content)

	suspicious := 0
	for _, line := range strings.Split(redacted, "\n") {
		if IsLikelySensitive(line) && !strings.Contains(line, "[REDACTED]") {
			suspicious++
		}
	}
	if suspicious > 0 {
		c.logger.Warn("diag.collect.suspicious", "Lines may still contain credentials", map[string]interface{}{
			"kind":  kind,
			"lines": suspicious,
		})
	}
	return redacted
}

// CalculateSHA256 computes SHA256 hash of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
