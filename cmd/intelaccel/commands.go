package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"intelaccel/internal/apt"
	"intelaccel/internal/archive"
	"intelaccel/internal/config"
	"intelaccel/internal/console"
	"intelaccel/internal/diag"
	"intelaccel/internal/fetch"
	"intelaccel/internal/gpu"
	"intelaccel/internal/logging"
	"intelaccel/internal/metrics"
	"intelaccel/internal/npu"
	"intelaccel/internal/pipeline"
	"intelaccel/internal/power"
	"intelaccel/internal/preflight"
	"intelaccel/internal/prompt"
	"intelaccel/internal/system"
	"intelaccel/internal/usergroup"
	"intelaccel/internal/verify"
)

var errConflictingAnswers = errors.New("--yes and --no-prompt cannot be combined")

func installCmd() *cli.Command {
	return &cli.Command{
		Name:   "install",
		Usage:  "Run the full installation (default)",
		Action: runInstall,
	}
}

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Run only the post-install verification probes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print the verification report as JSON",
			},
		},
		Action: runVerify,
	}
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration as YAML",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = cmd.Root().Writer.Write(data)
			return err
		},
	}
}

func diagCmd() *cli.Command {
	return &cli.Command{
		Name:  "diag",
		Usage: "Write a support bundle with the log, run history, config and verify report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "bundle path (default intelaccel-diag-<timestamp>.zip)",
			},
			&cli.BoolFlag{
				Name:  "skip-verify",
				Usage: "do not run the verification probes",
			},
		},
		Action: runDiag,
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(cmd.Root().Writer, "%s %s (commit %s)\n", name, version, commit)
			return err
		},
	}
}

func runInstall(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("yes") && cmd.Bool("no-prompt") {
		return errConflictingAnswers
	}

	// Refuse root before the log file or anything else is touched.
	if err := preflight.NewChecker(cfg, nil, nil).CheckPrivileges(); err != nil {
		return err
	}

	logger, err := openLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	deps, err := buildDeps(cmd, cfg, logger)
	if err != nil {
		return err
	}
	return pipeline.New(cfg, deps).Run(ctx)
}

func runVerify(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := openLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	username, err := usergroup.CurrentUsername()
	if err != nil {
		return err
	}
	runner := system.NewExecRunner(logger)
	verifier := verify.NewReporter(cfg, username, runner, usergroup.NewManager(runner, logger), logger)

	if cmd.Bool("json") {
		report := verifier.Run(ctx)
		encoder := json.NewEncoder(cmd.Root().Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	pipeline.New(cfg, pipeline.Deps{
		Verifier: verifier,
		Reporter: console.NewReporter(),
		Logger:   logger,
		Version:  version,
	}).Verify(ctx)
	return nil
}

func runDiag(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Events go to stderr so the bundled log is not appended to while it is read.
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.NewWriterLogger(level, logging.Format(cfg.Logging.Format), cmd.Root().ErrWriter)

	opts := diag.Options{
		Config:     cfg,
		OutputPath: cmd.String("output"),
		Version:    version,
	}
	if !cmd.Bool("skip-verify") {
		username, err := usergroup.CurrentUsername()
		if err != nil {
			return err
		}
		runner := system.NewExecRunner(logger)
		report := verify.NewReporter(cfg, username, runner, usergroup.NewManager(runner, logger), logger).Run(ctx)
		opts.Verify = &report
	}

	path, err := diag.NewPackager(opts, logger).CreatePackage()
	if err != nil {
		return err
	}
	console.NewReporter().Success("Support bundle written to %s", path)
	return nil
}

// loadConfig reads --config when given, otherwise the system and user files
func loadConfig(cmd *cli.Command) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if level := cmd.String("log-level"); level != "" {
		parsed, err := logging.ParseLevel(level)
		if err != nil {
			return cfg, fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.Logging.Level = string(parsed)
	}
	return cfg, nil
}

// openLogger opens the configured log file. When it cannot be opened the
// events go to stderr instead so the run still proceeds.
func openLogger(cmd *cli.Command, cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.Logging.Format)

	if cfg.Logging.File == "" {
		return logging.NewWriterLogger(level, format, cmd.Root().ErrWriter), nil
	}

	logger, err := logging.NewFileLogger(level, format, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(cmd.Root().ErrWriter, "⚠ %v; logging to stderr\n", err)
		return logging.NewWriterLogger(level, format, cmd.Root().ErrWriter), nil
	}
	return logger, nil
}

// buildDeps wires the real or dry-run capabilities for one installation
func buildDeps(cmd *cli.Command, cfg config.Config, logger *logging.Logger) (pipeline.Deps, error) {
	dryRun := cmd.Bool("dry-run")
	out := cmd.Root().Writer

	username, err := usergroup.CurrentUsername()
	if err != nil {
		return pipeline.Deps{}, err
	}

	// Probes only read state, so verification always uses the real runner.
	probe := system.NewExecRunner(logger)

	var (
		runner    system.Runner = probe
		fetcher   fetch.ArchiveFetcher
		extractor archive.ArchiveExtractor
		rebooter  power.Rebooter
	)
	if dryRun {
		runner = system.NewDryRunRunner(out)
		fetcher = fetch.NewDryRunFetcher(out)
		extractor = archive.NewDryRunExtractor(out)
		rebooter = power.NewDryRunRebooter(out)
	} else {
		timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
		fetcher = fetch.NewHTTPFetcher(timeout, logger)
		extractor = archive.NewExtractor(logger)
		rebooter = power.NewSystemRebooter(runner, logger)
	}

	packages := apt.NewManager(runner, logger)
	groups := usergroup.NewManager(runner, logger)

	var confirmer prompt.Confirmer = prompt.NewTerminalConfirmer(logger)
	switch {
	case cmd.Bool("yes"):
		confirmer = prompt.Static(true)
	case cmd.Bool("no-prompt"):
		confirmer = prompt.Static(false)
	}

	return pipeline.Deps{
		Preflight: preflight.NewChecker(cfg, probe, logger),
		Packages:  packages,
		GPU:       gpu.NewInstaller(cfg.GPU, packages, groups, username, logger),
		NPU: npu.NewInstaller(cfg.NPU, cfg.ScratchDir, npu.Options{
			Packages:  packages,
			Fetcher:   fetcher,
			Extractor: extractor,
			Vendor:    npu.NewExecInstallerRunner(runner, logger),
			DryRun:    dryRun,
			Logger:    logger,
		}),
		Verifier:  verify.NewReporter(cfg, username, probe, groups, logger),
		Confirmer: confirmer,
		Rebooter:  rebooter,
		Recorder:  metrics.NewRecorder(),
		History:   metrics.NewWriter(logger),
		Reporter:  console.NewReporter(),
		Logger:    logger,
		Version:   version,
		DryRun:    dryRun,
	}, nil
}
