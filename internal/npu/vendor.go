package npu

import (
	"context"
	"fmt"

	"intelaccel/internal/logging"
	"intelaccel/internal/system"
)

// VendorInstallerRunner executes the installer shipped inside the driver bundle
type VendorInstallerRunner interface {
	// Run makes installerPath executable and runs it elevated from workDir
	Run(ctx context.Context, installerPath, workDir string, args []string) error
}

// ExecInstallerRunner runs the vendor installer through a system.Runner
type ExecInstallerRunner struct {
	runner system.Runner
	logger *logging.Logger
}

// NewExecInstallerRunner creates a vendor installer runner
func NewExecInstallerRunner(runner system.Runner, logger *logging.Logger) *ExecInstallerRunner {
	return &ExecInstallerRunner{runner: runner, logger: logger}
}

// Run marks the installer executable and runs it with sudo. Its output is
// streamed to the terminal because the vendor script may prompt.
func (r *ExecInstallerRunner) Run(ctx context.Context, installerPath, workDir string, args []string) error {
	chmod := system.Command{
		Name: "chmod",
		Args: []string{"0755", installerPath},
	}
	if _, err := r.runner.Run(ctx, chmod); err != nil {
		return fmt.Errorf("failed to mark installer executable: %w", err)
	}

	r.logger.Info("npu.vendor.start", "Running vendor installer", map[string]interface{}{
		"installer": installerPath,
		"dir":       workDir,
	})

	cmd := system.Command{
		Name:     installerPath,
		Args:     args,
		Dir:      workDir,
		Elevated: true,
		Stream:   true,
	}
	if _, err := r.runner.Run(ctx, cmd); err != nil {
		return err
	}

	r.logger.Info("npu.vendor.completed", "Vendor installer finished", nil)
	return nil
}
