package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"intelaccel/internal/config"
	"intelaccel/internal/logging"
	"intelaccel/internal/system"
	"intelaccel/internal/usergroup"
)

// Status is the outcome of one verification check
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
)

// Check is the result of a single probe
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates the verification checks
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Warnings returns the number of checks that did not pass
func (r Report) Warnings() int {
	n := 0
	for _, c := range r.Checks {
		if c.Status != StatusOK {
			n++
		}
	}
	return n
}

// Reporter runs the post-install probes. A failing probe never stops the
// others and never produces an error.
type Reporter struct {
	cfg      config.VerifyConfig
	group    string
	username string
	runner   system.Runner
	groups   usergroup.GroupManager
	logger   *logging.Logger
}

// NewReporter creates a verification reporter
func NewReporter(cfg config.Config, username string, runner system.Runner, groups usergroup.GroupManager, logger *logging.Logger) *Reporter {
	return &Reporter{
		cfg:      cfg.Verify,
		group:    cfg.GPU.Group,
		username: username,
		runner:   runner,
		groups:   groups,
		logger:   logger,
	}
}

// Run executes every check in order
func (r *Reporter) Run(ctx context.Context) Report {
	report := Report{Timestamp: time.Now().UTC()}

	for _, tool := range r.cfg.Tools {
		report.Checks = append(report.Checks, r.checkTool(ctx, tool))
	}
	report.Checks = append(report.Checks,
		r.checkGroup(),
		r.checkKernelModule(),
		r.checkDeviceNode(),
	)

	for _, c := range report.Checks {
		payload := map[string]interface{}{
			"check":  c.Name,
			"detail": c.Detail,
		}
		if c.Status == StatusOK {
			r.logger.Info("verify.check.ok", "Verification check passed", payload)
		} else {
			r.logger.Warn("verify.check.warn", "Verification check failed", payload)
		}
	}

	return report
}

func (r *Reporter) checkTool(ctx context.Context, tool config.ToolCheck) Check {
	check := Check{Name: tool.Name}

	path, err := r.runner.LookPath(tool.Name)
	if err != nil {
		check.Status = StatusWarn
		check.Detail = fmt.Sprintf("%s not found in PATH", tool.Name)
		return check
	}

	res, err := r.runner.Run(ctx, system.Command{Name: path, Args: tool.Args})
	if err != nil {
		check.Status = StatusWarn
		check.Detail = fmt.Sprintf("%s is installed but failed to run: %v", tool.Name, err)
		return check
	}

	check.Status = StatusOK
	check.Detail = firstLine(res.Stdout)
	if check.Detail == "" {
		check.Detail = path
	}
	return check
}

func (r *Reporter) checkGroup() Check {
	check := Check{Name: "group:" + r.group}

	member, err := r.groups.IsMember(r.username, r.group)
	switch {
	case err != nil:
		check.Status = StatusWarn
		check.Detail = err.Error()
	case !member:
		check.Status = StatusWarn
		check.Detail = fmt.Sprintf("%s is not in group %s", r.username, r.group)
	default:
		check.Status = StatusOK
		check.Detail = fmt.Sprintf("%s is in group %s (takes effect after re-login)", r.username, r.group)
	}
	return check
}

func (r *Reporter) checkKernelModule() Check {
	check := Check{Name: "module:" + r.cfg.KernelModule}

	loaded, err := moduleLoaded(r.cfg.ModulesFile, r.cfg.KernelModule)
	switch {
	case err != nil:
		check.Status = StatusWarn
		check.Detail = err.Error()
	case !loaded:
		check.Status = StatusWarn
		check.Detail = fmt.Sprintf("kernel module %s is not loaded (a reboot may be required)", r.cfg.KernelModule)
	default:
		check.Status = StatusOK
		check.Detail = "loaded"
	}
	return check
}

func (r *Reporter) checkDeviceNode() Check {
	check := Check{Name: "device:" + r.cfg.DeviceNode}

	if _, err := os.Stat(r.cfg.DeviceNode); err != nil {
		check.Status = StatusWarn
		if os.IsNotExist(err) {
			check.Detail = fmt.Sprintf("%s does not exist", r.cfg.DeviceNode)
		} else {
			check.Detail = err.Error()
		}
		return check
	}

	check.Status = StatusOK
	check.Detail = "present"
	return check
}

// moduleLoaded reports whether name is listed in a /proc/modules style file.
// The kernel treats '-' and '_' in module names as equivalent.
func moduleLoaded(modulesFile, name string) (bool, error) {
	// #nosec G304 -- path comes from configuration
	f, err := os.Open(modulesFile)
	if err != nil {
		return false, fmt.Errorf("failed to read kernel modules from %s: %w", modulesFile, err)
	}
	defer func() { _ = f.Close() }()

	want := normalizeModule(name)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && normalizeModule(fields[0]) == want {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read kernel modules from %s: %w", modulesFile, err)
	}
	return false, nil
}

func normalizeModule(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
