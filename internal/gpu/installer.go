package gpu

import (
	"context"
	"fmt"

	"intelaccel/internal/apt"
	"intelaccel/internal/config"
	"intelaccel/internal/logging"
	"intelaccel/internal/usergroup"
)

// Installer registers the graphics repository, installs the compute, media
// and tooling packages and grants the user access to the render nodes
type Installer struct {
	cfg      config.GPUConfig
	packages apt.PackageInstaller
	groups   usergroup.GroupManager
	username string
	logger   *logging.Logger
}

// NewInstaller creates the GPU stage for username
func NewInstaller(cfg config.GPUConfig, packages apt.PackageInstaller, groups usergroup.GroupManager, username string, logger *logging.Logger) *Installer {
	return &Installer{
		cfg:      cfg,
		packages: packages,
		groups:   groups,
		username: username,
		logger:   logger,
	}
}

// Install runs the GPU driver stage. Every step tolerates state left by a
// previous run, so repeating the stage on an installed system succeeds.
func (i *Installer) Install(ctx context.Context) (Report, error) {
	report := Report{
		Repository: i.cfg.Repository,
		Packages:   i.cfg.Packages,
		Group:      i.cfg.Group,
		User:       i.username,
	}

	i.logger.Info("gpu.install.start", "Installing GPU drivers", map[string]interface{}{
		"repository": i.cfg.Repository,
		"packages":   len(i.cfg.Packages),
	})

	added, err := i.packages.AddRepository(ctx, i.cfg.Repository)
	if err != nil {
		return report, err
	}
	report.RepositoryAdded = added

	if err := i.packages.Update(ctx); err != nil {
		return report, err
	}

	if err := i.packages.Install(ctx, i.cfg.Packages...); err != nil {
		return report, err
	}

	groupAdded, err := i.groups.AddToGroup(ctx, i.username, i.cfg.Group)
	if err != nil {
		return report, fmt.Errorf("failed to grant %s access: %w", i.cfg.Group, err)
	}
	report.GroupAdded = groupAdded

	i.logger.Info("gpu.install.completed", "GPU drivers installed", map[string]interface{}{
		"repository_added": report.RepositoryAdded,
		"group_added":      report.GroupAdded,
	})

	return report, nil
}
