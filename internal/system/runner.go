package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"

	"intelaccel/internal/logging"
)

// stderrTail bounds how much stderr is kept for error messages
const stderrTail = 2048

// Command describes one external program invocation
type Command struct {
	Name string
	Args []string
	// Env entries (KEY=value) are added to the environment of the program
	Env []string
	// Dir is the working directory; empty means the current directory
	Dir string
	// Elevated runs the program through sudo
	Elevated bool
	// Stream connects the program's stdout/stderr to the terminal instead of capturing them
	Stream bool
}

// Argv returns the full argument vector including the sudo prefix
func (c Command) Argv() []string {
	var argv []string
	if c.Elevated {
		argv = append(argv, "sudo")
		if len(c.Env) > 0 {
			argv = append(argv, "env")
			argv = append(argv, c.Env...)
		}
	}
	argv = append(argv, c.Name)
	return append(argv, c.Args...)
}

// String renders the command line with shell quoting
func (c Command) String() string {
	argv := c.Argv()
	if !c.Elevated && len(c.Env) > 0 {
		argv = append(append([]string{}, c.Env...), argv...)
	}
	return shellescape.QuoteCommand(argv)
}

// Result holds the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError is returned when a command cannot start or exits non-zero
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed (exit %d): %v", e.Command, e.ExitCode, e.Err)
	if e.Stderr != "" {
		msg += ", stderr: " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying exec error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes external commands
type Runner interface {
	// Run executes the command and blocks until it exits
	Run(ctx context.Context, cmd Command) (Result, error)
	// LookPath reports the location of an executable in PATH
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the local host
type ExecRunner struct {
	stdout io.Writer
	stderr io.Writer
	logger *logging.Logger
}

// NewExecRunner creates a runner streaming to the process's stdout/stderr
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	return &ExecRunner{
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logger,
	}
}

// Run executes the command. Streaming commands still record the tail of
// stderr so failures can be reported.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	argv := cmd.Argv()
	line := cmd.String()

	r.logger.Debug("system.exec.start", "Running command", map[string]interface{}{
		"command":  line,
		"elevated": cmd.Elevated,
	})

	// #nosec G204 -- argv is assembled from validated configuration
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 && !cmd.Elevated {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	if cmd.Stream {
		c.Stdin = os.Stdin
		c.Stdout = r.stdout
		c.Stderr = io.MultiWriter(r.stderr, &stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}

		r.logger.Warn("system.exec.failed", "Command failed", map[string]interface{}{
			"command":   line,
			"exit_code": result.ExitCode,
			"error":     err.Error(),
		})

		return result, &CommandError{
			Command:  line,
			ExitCode: result.ExitCode,
			Stderr:   tail(result.Stderr),
			Err:      err,
		}
	}

	r.logger.Debug("system.exec.done", "Command finished", map[string]interface{}{
		"command": line,
	})

	return result, nil
}

// LookPath reports the location of an executable in PATH
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	return "..." + s[len(s)-stderrTail:]
}
