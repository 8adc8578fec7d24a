package preflight

import (
	"context"
	"errors"
	"os"

	"intelaccel/internal/config"
	"intelaccel/internal/logging"
	"intelaccel/internal/system"
)

// ErrRunningAsRoot is returned when the installer is started as root.
// Elevation is requested per command, so the process itself must run as a regular user.
var ErrRunningAsRoot = errors.New("this installer must not be run as root; run it as a regular user with sudo rights")

// Finding is the outcome of one advisory check
type Finding struct {
	Name   string
	OK     bool
	Detail string
}

// Report collects advisory findings
type Report struct {
	Findings []Finding
}

// Warnings returns the number of failed advisory checks
func (r Report) Warnings() int {
	n := 0
	for _, f := range r.Findings {
		if !f.OK {
			n++
		}
	}
	return n
}

// Checker runs the preflight checks
type Checker struct {
	osCfg   config.OSConfig
	hwCfg   config.HardwareConfig
	runner  system.Runner
	logger  *logging.Logger
	geteuid func() int

	releaseFallback string
}

// NewChecker creates a preflight checker
func NewChecker(cfg config.Config, runner system.Runner, logger *logging.Logger) *Checker {
	return &Checker{
		osCfg:           cfg.OS,
		hwCfg:           cfg.Hardware,
		runner:          runner,
		logger:          logger,
		geteuid:         os.Geteuid,
		releaseFallback: fallbackReleaseFile,
	}
}

// CheckPrivileges fails with ErrRunningAsRoot when the effective UID is 0
func (c *Checker) CheckPrivileges() error {
	if c.geteuid() == 0 {
		c.logger.Error("preflight.root", "Refusing to run as root", nil)
		return ErrRunningAsRoot
	}
	return nil
}

// Run checks privileges and then runs the advisory checks.
// Only the privilege check can fail; the other findings are reported.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	if err := c.CheckPrivileges(); err != nil {
		return Report{}, err
	}

	report := Report{
		Findings: []Finding{
			c.CheckOS(),
			c.CheckHardware(ctx),
		},
	}

	for _, f := range report.Findings {
		payload := map[string]interface{}{
			"check":  f.Name,
			"detail": f.Detail,
		}
		if f.OK {
			c.logger.Info("preflight.check.ok", "Preflight check passed", payload)
		} else {
			c.logger.Warn("preflight.check.warn", "Preflight check reported a warning", payload)
		}
	}

	return report, nil
}
