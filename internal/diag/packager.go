package diag

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"intelaccel/internal/fsutil"
	"intelaccel/internal/logging"
)

const manifestName = "diag_manifest.json"

// Packager creates support bundle ZIP files
type Packager struct {
	opts      Options
	collector *Collector
	logger    *logging.Logger
	now       func() time.Time
}

// NewPackager creates a new bundle packager
func NewPackager(opts Options, logger *logging.Logger) *Packager {
	return &Packager{
		opts:      opts,
		collector: NewCollector(opts, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// CreatePackage collects every artifact and writes the bundle.
// Collection errors are logged and the bundle is written with what remains.
func (p *Packager) CreatePackage() (string, error) {
	output := p.opts.OutputPath
	if output == "" {
		output = DefaultOutputPath(p.now())
	}

	p.logger.Info("diag.package.start", "Creating support bundle", map[string]interface{}{
		"output": output,
	})

	collectors := []struct {
		name    string
		collect func() (map[string][]byte, error)
	}{
		{"log", p.collector.CollectLog},
		{"history", p.collector.CollectHistory},
		{"config", p.collector.CollectConfig},
		{"verify", p.collector.CollectVerify},
		{"sysinfo", p.collector.CollectSystemInfo},
	}

	// collectors are independent; each writes only its own slot
	results := make([]map[string][]byte, len(collectors))
	var g errgroup.Group
	for i, c := range collectors {
		g.Go(func() error {
			files, err := c.collect()
			if err != nil {
				p.logger.Error("diag.package.collect_error", "Failed to collect artifact", map[string]interface{}{
					"collector": c.name,
					"error":     err.Error(),
				})
			}
			results[i] = files
			return nil
		})
	}
	_ = g.Wait()

	allFiles := make(map[string][]byte)
	for _, files := range results {
		for path, content := range files {
			allFiles[path] = content
		}
	}

	manifestJSON, err := json.MarshalIndent(p.createManifest(allFiles), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	allFiles[manifestName] = manifestJSON

	if err := p.writeZIP(output, allFiles); err != nil {
		return "", fmt.Errorf("failed to create ZIP: %w", err)
	}

	var size uint64
	if info, err := os.Stat(output); err == nil {
		size = uint64(info.Size()) // #nosec G115 -- file sizes are non-negative
	}
	p.logger.Info("diag.package.complete", "Support bundle created", map[string]interface{}{
		"output":     output,
		"file_count": len(allFiles),
		"size":       humanize.Bytes(size),
	})

	return output, nil
}

// createManifest lists the collected files in path order
func (p *Packager) createManifest(files map[string][]byte) Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	manifest := Manifest{
		Timestamp: p.now().UTC().Format(time.RFC3339),
		Host:      hostname,
		Version:   p.opts.Version,
		Files:     make([]ManifestFile, 0, len(files)),
	}
	for _, path := range sortedKeys(files) {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(files[path])),
			SHA256:    CalculateSHA256(files[path]),
		})
	}
	return manifest
}

// writeZIP writes the archive next to output and renames it into place
func (p *Packager) writeZIP(output string, files map[string][]byte) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := fsutil.EnsureDirectory(dir); err != nil {
			return err
		}
	}

	tmpPath := output + ".part"
	zipFile, err := os.OpenFile(filepath.Clean(tmpPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	zipWriter := zip.NewWriter(zipFile)
	for _, path := range sortedKeys(files) {
		writer, err := zipWriter.Create(path)
		if err == nil {
			_, err = writer.Write(files[path])
		}
		if err != nil {
			_ = zipWriter.Close()
			_ = zipFile.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("failed to add %s: %w", path, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		_ = zipFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finish ZIP: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close output file: %w", err)
	}

	return fsutil.CommitFile(tmpPath, output, p.logger)
}

func sortedKeys(files map[string][]byte) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
