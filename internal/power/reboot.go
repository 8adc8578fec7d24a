package power

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/coreos/go-systemd/v22/util"
	"github.com/godbus/dbus/v5"

	"intelaccel/internal/logging"
	"intelaccel/internal/system"
)

// Rebooter restarts the machine
type Rebooter interface {
	Reboot(ctx context.Context) error
}

const (
	logindDest = "org.freedesktop.login1"
	logindPath = dbus.ObjectPath("/org/freedesktop/login1")
)

// logindConn is the part of the logind connection used for rebooting
type logindConn interface {
	Reboot(ctx context.Context) error
	Close()
}

// busConn calls the logind manager over a private system bus connection
type busConn struct {
	conn *dbus.Conn
}

func dialLogind() (logindConn, error) {
	if !util.IsRunningSystemd() {
		return nil, errors.New("host was not booted with systemd")
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &busConn{conn: conn}, nil
}

// Reboot returns the error of the logind call, polkit denials included
func (b *busConn) Reboot(ctx context.Context) error {
	return b.conn.Object(logindDest, logindPath).
		CallWithContext(ctx, logindDest+".Manager.Reboot", 0, true).Err
}

func (b *busConn) Close() {
	_ = b.conn.Close()
}

// SystemRebooter asks systemd-logind to reboot and falls back to
// "sudo systemctl reboot" when logind is unreachable or refuses
type SystemRebooter struct {
	runner  system.Runner
	logger  *logging.Logger
	connect func() (logindConn, error)
}

// NewSystemRebooter creates a rebooter
func NewSystemRebooter(runner system.Runner, logger *logging.Logger) *SystemRebooter {
	return &SystemRebooter{
		runner:  runner,
		logger:  logger,
		connect: dialLogind,
	}
}

// Reboot requests an immediate reboot
func (r *SystemRebooter) Reboot(ctx context.Context) error {
	err := r.rebootViaLogind(ctx)
	if err == nil {
		return nil
	}

	r.logger.Warn("power.reboot.fallback", "systemd-logind reboot failed, falling back to systemctl", map[string]interface{}{
		"error": err.Error(),
	})

	cmd := system.Command{
		Name:     "systemctl",
		Args:     []string{"reboot"},
		Elevated: true,
	}
	if _, err := r.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to reboot: %w", err)
	}
	return nil
}

func (r *SystemRebooter) rebootViaLogind(ctx context.Context) error {
	conn, err := r.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	r.logger.Info("power.reboot.logind", "Requesting reboot from systemd-logind", nil)
	return conn.Reboot(ctx)
}

// DryRunRebooter reports the reboot without performing it
type DryRunRebooter struct {
	out io.Writer
}

// NewDryRunRebooter creates a rebooter that prints to out
func NewDryRunRebooter(out io.Writer) *DryRunRebooter {
	return &DryRunRebooter{out: out}
}

// Reboot prints the planned reboot
func (d *DryRunRebooter) Reboot(context.Context) error {
	fmt.Fprintln(d.out, "[dry-run] reboot")
	return nil
}
