package system

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// DryRunRunner prints commands instead of executing them.
// LookPath still consults the real PATH so verification output stays meaningful.
type DryRunRunner struct {
	out io.Writer
}

// NewDryRunRunner creates a runner that writes command lines to out
func NewDryRunRunner(out io.Writer) *DryRunRunner {
	return &DryRunRunner{out: out}
}

// Run prints the command line and reports success
func (r *DryRunRunner) Run(_ context.Context, cmd Command) (Result, error) {
	if cmd.Dir != "" {
		fmt.Fprintf(r.out, "[dry-run] (cd %s) %s\n", cmd.Dir, cmd.String())
	} else {
		fmt.Fprintf(r.out, "[dry-run] %s\n", cmd.String())
	}
	return Result{}, nil
}

// LookPath reports the location of an executable in PATH
func (r *DryRunRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
