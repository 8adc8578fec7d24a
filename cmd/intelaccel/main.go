package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"intelaccel/internal/console"
)

const name = "intelaccel"

// overridden during build with ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInstallation interrupted")
		cancel()
	}()

	err := newApp().Run(ctx, os.Args)
	signal.Stop(sigCh)
	cancel()

	if err != nil {
		console.NewReporter().Error("%v", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    name,
		Usage:   "Install Intel GPU and NPU drivers on Ubuntu",
		Version: version,
		Description: `Installs the Intel GPU compute and media stack from the vendor package
repository and the Intel NPU driver from its versioned release archive.

Run as a regular user with sudo rights. Without a subcommand the full
installation runs:

  1. preflight   privilege, distribution and hardware checks
  2. prepare     scratch directory and package index refresh
  3. gpu         repository, packages and render group membership
  4. npu         driver archive download, extraction and vendor installer
  5. verify      advisory probes for tools, group, kernel module and device
  6. cleanup     optional removal of the scratch directory
  7. complete    summary and optional reboot`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "load a single config file over the defaults instead of the system and user files",
				Sources: cli.EnvVars("INTELACCEL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "print every command instead of running it",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "answer yes to the cleanup and reboot prompts",
			},
			&cli.BoolFlag{
				Name:  "no-prompt",
				Usage: "answer no to the cleanup and reboot prompts",
			},
		},
		Action: runInstall,
		Commands: []*cli.Command{
			installCmd(),
			verifyCmd(),
			configCmd(),
			diagCmd(),
			versionCmd(),
		},
	}
}
