package apt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"intelaccel/internal/logging"
	"intelaccel/internal/system"
)

// DefaultSourcesDir is where apt keeps third-party repository entries
const DefaultSourcesDir = "/etc/apt/sources.list.d"

// PackageInstaller manages system packages and repositories
type PackageInstaller interface {
	// Update refreshes the package index
	Update(ctx context.Context) error
	// Install installs the packages in one transaction
	Install(ctx context.Context, packages ...string) error
	// AddRepository registers a repository if it is not registered yet
	AddRepository(ctx context.Context, repo string) (added bool, err error)
}

// Manager implements PackageInstaller with apt-get and add-apt-repository
type Manager struct {
	runner     system.Runner
	sourcesDir string
	logger     *logging.Logger
}

// NewManager creates an apt manager
func NewManager(runner system.Runner, logger *logging.Logger) *Manager {
	return &Manager{
		runner:     runner,
		sourcesDir: DefaultSourcesDir,
		logger:     logger,
	}
}

// WithSourcesDir overrides the sources directory used for the registration check
func (m *Manager) WithSourcesDir(dir string) *Manager {
	m.sourcesDir = dir
	return m
}

func aptGet(args ...string) system.Command {
	return system.Command{
		Name:     "apt-get",
		Args:     args,
		Env:      []string{"DEBIAN_FRONTEND=noninteractive"},
		Elevated: true,
		Stream:   true,
	}
}

// Update refreshes the package index
func (m *Manager) Update(ctx context.Context) error {
	m.logger.Info("apt.update.start", "Refreshing package index", nil)

	if _, err := m.runner.Run(ctx, aptGet("update")); err != nil {
		return fmt.Errorf("failed to refresh package index: %w", err)
	}
	return nil
}

// Install installs the packages in one transaction. Already installed
// packages are left alone by apt, so repeating the call is harmless.
func (m *Manager) Install(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}

	m.logger.Info("apt.install.start", "Installing packages", map[string]interface{}{
		"packages": packages,
	})

	args := append([]string{"install", "-y"}, packages...)
	if _, err := m.runner.Run(ctx, aptGet(args...)); err != nil {
		return fmt.Errorf("failed to install packages %s: %w", strings.Join(packages, " "), err)
	}
	return nil
}

// AddRepository registers repo unless a matching sources entry already exists
func (m *Manager) AddRepository(ctx context.Context, repo string) (bool, error) {
	registered, err := m.IsRegistered(repo)
	if err != nil {
		m.logger.Warn("apt.repository.check_failed", "Could not inspect sources, adding repository", map[string]interface{}{
			"repository": repo,
			"error":      err.Error(),
		})
	}
	if registered {
		m.logger.Info("apt.repository.present", "Repository already registered", map[string]interface{}{
			"repository": repo,
		})
		return false, nil
	}

	cmd := system.Command{
		Name:     "add-apt-repository",
		Args:     []string{"-y", repo},
		Elevated: true,
		Stream:   true,
	}
	if _, err := m.runner.Run(ctx, cmd); err != nil {
		return false, fmt.Errorf("failed to add repository %s: %w", repo, err)
	}

	m.logger.Info("apt.repository.added", "Repository added", map[string]interface{}{
		"repository": repo,
	})
	return true, nil
}

// IsRegistered reports whether a sources file already references repo
func (m *Manager) IsRegistered(repo string) (bool, error) {
	needles := sourceNeedles(repo)

	entries, err := os.ReadDir(m.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", m.sourcesDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".list") || strings.HasSuffix(name, ".sources")) {
			continue
		}

		// #nosec G304 -- file names come from the apt sources directory
		data, err := os.ReadFile(filepath.Join(m.sourcesDir, name))
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", name, err)
		}
		content := string(data)
		for _, needle := range needles {
			if strings.Contains(content, needle) {
				return true, nil
			}
		}
	}

	return false, nil
}

// sourceNeedles returns the strings a registered repo leaves in apt sources.
// A PPA shortcut ppa:owner/name becomes a launchpad URL.
func sourceNeedles(repo string) []string {
	if ppa, ok := strings.CutPrefix(repo, "ppa:"); ok {
		return []string{
			"ppa.launchpadcontent.net/" + ppa + "/",
			"ppa.launchpad.net/" + ppa + "/",
		}
	}
	return []string{repo}
}
