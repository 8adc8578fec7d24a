package npu

import (
	"context"
	"fmt"
	"path/filepath"

	"intelaccel/internal/apt"
	"intelaccel/internal/archive"
	"intelaccel/internal/config"
	"intelaccel/internal/fetch"
	"intelaccel/internal/logging"
)

// Report summarizes the NPU driver stage
type Report struct {
	Version     string `json:"version"`
	ArchivePath string `json:"archive_path"`
	ExtractDir  string `json:"extract_dir"`
	Downloaded  bool   `json:"downloaded"`
	Verified    bool   `json:"verified"`
}

// Installer downloads, unpacks and runs the vendor NPU driver bundle
type Installer struct {
	cfg        config.NPUConfig
	scratchDir string
	packages   apt.PackageInstaller
	fetcher    fetch.ArchiveFetcher
	extractor  archive.ArchiveExtractor
	vendor     VendorInstallerRunner
	dryRun     bool
	logger     *logging.Logger
}

// Options bundles the capabilities the NPU stage depends on
type Options struct {
	Packages  apt.PackageInstaller
	Fetcher   fetch.ArchiveFetcher
	Extractor archive.ArchiveExtractor
	Vendor    VendorInstallerRunner
	DryRun    bool
	Logger    *logging.Logger
}

// NewInstaller creates the NPU stage working inside scratchDir
func NewInstaller(cfg config.NPUConfig, scratchDir string, opts Options) *Installer {
	return &Installer{
		cfg:        cfg,
		scratchDir: scratchDir,
		packages:   opts.Packages,
		fetcher:    opts.Fetcher,
		extractor:  opts.Extractor,
		vendor:     opts.Vendor,
		dryRun:     opts.DryRun,
		logger:     opts.Logger,
	}
}

// Install runs the NPU driver stage: dependencies, archive, extraction, vendor installer.
// Every failure is returned; the caller treats them as fatal.
func (i *Installer) Install(ctx context.Context) (Report, error) {
	release := i.cfg.Descriptor()
	report := Report{
		Version:     release.Version,
		ArchivePath: release.ArchivePath(i.scratchDir),
		ExtractDir:  release.ExtractDir(i.scratchDir),
	}

	i.logger.Info("npu.install.start", "Installing NPU driver", map[string]interface{}{
		"version": release.Version,
		"url":     release.URL,
	})

	if err := i.packages.Install(ctx, i.cfg.Dependencies...); err != nil {
		return report, fmt.Errorf("failed to install NPU dependencies: %w", err)
	}

	res, err := i.fetcher.Fetch(ctx, release.URL, report.ArchivePath)
	if err != nil {
		return report, fmt.Errorf("failed to fetch NPU driver archive: %w", err)
	}
	report.Downloaded = !res.Skipped && !res.DryRun

	if i.cfg.SHA256 != "" && !res.DryRun {
		if err := fetch.VerifySHA256(report.ArchivePath, i.cfg.SHA256); err != nil {
			return report, err
		}
		report.Verified = true
		i.logger.Info("npu.checksum.verified", "Archive checksum verified", map[string]interface{}{
			"path": report.ArchivePath,
		})
	}

	if err := i.extractor.Extract(ctx, report.ArchivePath, report.ExtractDir, release.Format); err != nil {
		return report, fmt.Errorf("failed to extract NPU driver archive: %w", err)
	}

	installer := filepath.Join(report.ExtractDir, filepath.FromSlash(i.cfg.Installer))
	if err := i.vendor.Run(ctx, installer, report.ExtractDir, i.cfg.InstallerArgs); err != nil {
		return report, fmt.Errorf("NPU vendor installer failed: %w", err)
	}

	i.logger.Info("npu.install.completed", "NPU driver installed", map[string]interface{}{
		"version":    release.Version,
		"downloaded": report.Downloaded,
	})

	return report, nil
}
