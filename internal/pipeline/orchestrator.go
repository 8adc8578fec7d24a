package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intelaccel/internal/apt"
	"intelaccel/internal/config"
	"intelaccel/internal/console"
	"intelaccel/internal/fsutil"
	"intelaccel/internal/gpu"
	"intelaccel/internal/logging"
	"intelaccel/internal/metrics"
	"intelaccel/internal/npu"
	"intelaccel/internal/power"
	"intelaccel/internal/preflight"
	"intelaccel/internal/prompt"
	"intelaccel/internal/verify"
)

// Stage names a pipeline step
type Stage string

const (
	StagePreflight Stage = "preflight"
	StagePrepare   Stage = "prepare"
	StageGPU       Stage = "gpu"
	StageNPU       Stage = "npu"
	StageVerify    Stage = "verify"
	StageCleanup   Stage = "cleanup"
	StageComplete  Stage = "complete"
)

const totalStages = 7

// StageError reports which stage stopped the run
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Err
}

// Preflighter runs the privilege check and the advisory host checks
type Preflighter interface {
	Run(ctx context.Context) (preflight.Report, error)
}

// GPUInstaller runs the GPU driver stage
type GPUInstaller interface {
	Install(ctx context.Context) (gpu.Report, error)
}

// NPUInstaller runs the NPU driver stage
type NPUInstaller interface {
	Install(ctx context.Context) (npu.Report, error)
}

// Verifier runs the post-install probes
type Verifier interface {
	Run(ctx context.Context) verify.Report
}

// Deps holds the capabilities the orchestrator drives
type Deps struct {
	Preflight Preflighter
	Packages  apt.PackageInstaller
	GPU       GPUInstaller
	NPU       NPUInstaller
	Verifier  Verifier
	Confirmer prompt.Confirmer
	Rebooter  power.Rebooter

	Recorder *metrics.Recorder
	History  *metrics.Writer
	Reporter *console.Reporter
	Logger   *logging.Logger

	Version string
	DryRun  bool
}

// Orchestrator runs the installer stages in order. Every stage except
// verification is fatal on error.
type Orchestrator struct {
	cfg        config.Config
	deps       Deps
	now        func() time.Time
	removeTree func(string) error
}

// New creates an orchestrator
func New(cfg config.Config, deps Deps) *Orchestrator {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NewRecorder()
	}
	return &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		now:        time.Now,
		removeTree: fsutil.RemoveTree,
	}
}

// Run executes the full installation
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	o.deps.Reporter.Title("Intel GPU/NPU driver installation")
	o.deps.Logger.Info("pipeline.start", "Starting installation", map[string]interface{}{
		"npu_release": o.cfg.NPU.Release,
		"scratch_dir": o.cfg.ScratchDir,
		"dry_run":     o.deps.DryRun,
	})

	defer func() {
		if errors.Is(err, preflight.ErrRunningAsRoot) {
			return
		}
		o.finish(err)
	}()

	steps := []struct {
		stage Stage
		title string
		run   func(context.Context) (int, error)
	}{
		{StagePreflight, "Running preflight checks", o.runPreflight},
		{StagePrepare, "Preparing environment", o.runPrepare},
		{StageGPU, "Installing GPU drivers", o.runGPU},
		{StageNPU, "Installing NPU driver", o.runNPU},
		{StageVerify, "Verifying installation", o.runVerify},
		{StageCleanup, "Cleaning up", o.runCleanup},
		{StageComplete, "Finishing", o.runComplete},
	}

	for i, step := range steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &StageError{Stage: step.stage, Err: ctxErr}
		}

		o.deps.Reporter.Step(i+1, totalStages, step.title)
		o.deps.Logger.Info("pipeline.stage.start", step.title, map[string]interface{}{
			"stage": string(step.stage),
		})

		start := o.now()
		warnings, stageErr := step.run(ctx)
		elapsed := o.now().Sub(start)
		o.deps.Recorder.ObserveStageWithWarnings(string(step.stage), elapsed, warnings, stageErr)

		if stageErr != nil {
			o.deps.Logger.Error("pipeline.stage.failed", "Stage failed", map[string]interface{}{
				"stage": string(step.stage),
				"error": stageErr.Error(),
			})
			return &StageError{Stage: step.stage, Err: stageErr}
		}

		o.deps.Logger.Info("pipeline.stage.completed", "Stage completed", map[string]interface{}{
			"stage":    string(step.stage),
			"duration": elapsed.String(),
			"warnings": warnings,
		})
	}

	return nil
}

// Verify runs only the verification stage. It never fails.
func (o *Orchestrator) Verify(ctx context.Context) verify.Report {
	o.deps.Reporter.Title("Intel GPU/NPU driver verification")
	report := o.deps.Verifier.Run(ctx)
	o.printVerify(report)
	return report
}

func (o *Orchestrator) runPreflight(ctx context.Context) (int, error) {
	report, err := o.deps.Preflight.Run(ctx)
	if err != nil {
		return 0, err
	}

	for _, f := range report.Findings {
		if f.OK {
			o.deps.Reporter.Success("%s: %s", f.Name, f.Detail)
		} else {
			o.deps.Reporter.Warn("%s: %s", f.Name, f.Detail)
		}
	}
	return report.Warnings(), nil
}

func (o *Orchestrator) runPrepare(ctx context.Context) (int, error) {
	if o.deps.DryRun {
		o.deps.Reporter.Info("[dry-run] mkdir -p %s", o.cfg.ScratchDir)
	} else {
		if err := fsutil.EnsureDirectory(o.cfg.ScratchDir); err != nil {
			return 0, err
		}
		o.deps.Reporter.Success("Scratch directory ready: %s", o.cfg.ScratchDir)
	}

	o.deps.Reporter.Info("Refreshing package index")
	if err := o.deps.Packages.Update(ctx); err != nil {
		return 0, err
	}
	o.deps.Reporter.Success("Package index refreshed")
	return 0, nil
}

func (o *Orchestrator) runGPU(ctx context.Context) (int, error) {
	report, err := o.deps.GPU.Install(ctx)
	if err != nil {
		return 0, err
	}

	if report.RepositoryAdded {
		o.deps.Reporter.Success("Repository added: %s", report.Repository)
	} else {
		o.deps.Reporter.Success("Repository already registered: %s", report.Repository)
	}
	o.deps.Reporter.Success("Installed %d GPU packages", len(report.Packages))
	if report.GroupAdded {
		o.deps.Reporter.Success("Added %s to group %s", report.User, report.Group)
	} else {
		o.deps.Reporter.Success("%s already in group %s", report.User, report.Group)
	}
	return 0, nil
}

func (o *Orchestrator) runNPU(ctx context.Context) (int, error) {
	report, err := o.deps.NPU.Install(ctx)
	if err != nil {
		return 0, err
	}

	if report.Downloaded {
		o.deps.Reporter.Success("Downloaded NPU driver %s", report.Version)
	} else {
		o.deps.Reporter.Success("Using NPU driver archive %s", report.ArchivePath)
	}
	if report.Verified {
		o.deps.Reporter.Success("Archive checksum verified")
	}
	o.deps.Reporter.Success("NPU driver %s installed", report.Version)
	return 0, nil
}

func (o *Orchestrator) runVerify(ctx context.Context) (int, error) {
	report := o.deps.Verifier.Run(ctx)
	o.printVerify(report)
	return report.Warnings(), nil
}

func (o *Orchestrator) printVerify(report verify.Report) {
	for _, c := range report.Checks {
		if c.Status == verify.StatusOK {
			o.deps.Reporter.Success("%s: %s", c.Name, c.Detail)
		} else {
			o.deps.Reporter.Warn("%s: %s", c.Name, c.Detail)
		}
	}
	if n := report.Warnings(); n > 0 {
		o.deps.Reporter.Hint("%d check(s) reported warnings; a reboot or re-login may be required", n)
	}
}

func (o *Orchestrator) runCleanup(ctx context.Context) (int, error) {
	question := fmt.Sprintf("Remove scratch directory %s?", o.cfg.ScratchDir)
	if !o.deps.Confirmer.Confirm(ctx, question) {
		o.deps.Reporter.Info("Keeping %s", o.cfg.ScratchDir)
		return 0, nil
	}

	if o.deps.DryRun {
		o.deps.Reporter.Info("[dry-run] rm -rf %s", o.cfg.ScratchDir)
		return 0, nil
	}

	if err := o.removeTree(o.cfg.ScratchDir); err != nil {
		return 0, err
	}
	o.deps.Logger.Info("pipeline.cleanup.removed", "Scratch directory removed", map[string]interface{}{
		"path": o.cfg.ScratchDir,
	})
	o.deps.Reporter.Success("Removed %s", o.cfg.ScratchDir)
	return 0, nil
}

func (o *Orchestrator) runComplete(ctx context.Context) (int, error) {
	o.deps.Reporter.Success("Intel GPU and NPU drivers installed (NPU driver %s)", o.cfg.NPU.Release)
	o.deps.Reporter.Hint("Log out and back in for the %s group membership to take effect", o.cfg.GPU.Group)
	o.deps.Reporter.Hint("A reboot loads the NPU kernel module and creates %s", o.cfg.Verify.DeviceNode)

	if !o.deps.Confirmer.Confirm(ctx, "Reboot now?") {
		o.deps.Reporter.Info("Reboot skipped; remember to reboot before using the NPU")
		return 0, nil
	}

	o.deps.Logger.Info("pipeline.reboot", "Rebooting", nil)
	if err := o.deps.Rebooter.Reboot(ctx); err != nil {
		return 0, err
	}
	return 0, nil
}

// finish exports the run record and metrics. Export failures only warn.
func (o *Orchestrator) finish(runErr error) {
	now := o.now()
	success := runErr == nil
	o.deps.Recorder.Finish(now, success)

	result := metrics.ResultSuccess
	if !success {
		result = metrics.ResultFailure
	}

	if path := o.cfg.Metrics.History; path != "" && o.deps.History != nil {
		record := metrics.RunRecord{
			Timestamp:  now.UTC(),
			RunID:      o.deps.Logger.RunID(),
			Version:    o.deps.Version,
			NPURelease: o.cfg.NPU.Release,
			DryRun:     o.deps.DryRun,
			Result:     result,
			Stages:     o.deps.Recorder.Samples(),
		}
		if err := o.deps.History.Write(record, path); err != nil {
			o.warnExport("history", err)
		}
	}

	if path := o.cfg.Metrics.Textfile; path != "" {
		if err := o.deps.Recorder.WriteTextfile(path); err != nil {
			o.warnExport("textfile", err)
		}
	}

	o.deps.Logger.Info("pipeline.finish", "Installation finished", map[string]interface{}{
		"result": result,
	})
}

func (o *Orchestrator) warnExport(kind string, err error) {
	o.deps.Logger.Warn("pipeline.export_failed", "Failed to export run metrics", map[string]interface{}{
		"kind":  kind,
		"error": err.Error(),
	})
	o.deps.Reporter.Warn("could not write run %s: %v", kind, err)
}
