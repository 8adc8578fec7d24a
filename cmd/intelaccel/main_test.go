package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{name}, args...))
	return out.String(), err
}

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	if app.Action == nil {
		t.Error("root command must run the installation")
	}

	want := map[string]bool{"install": false, "verify": false, "config": false, "diag": false, "version": false}
	for _, c := range app.Commands {
		if _, ok := want[c.Name]; ok {
			want[c.Name] = true
		}
	}
	for cmd, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", cmd)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, name+" "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := runApp(t, "--config", emptyConfig(t), "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, key := range []string{"scratch_dir:", "npu:", "release:", "archive_url:"} {
		if !strings.Contains(out, key) {
			t.Errorf("config output missing %q:\n%s", key, out)
		}
	}
}

func TestConfigCommand_LogLevelOverride(t *testing.T) {
	out, err := runApp(t, "--config", emptyConfig(t), "--log-level", "debug", "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "level: debug") {
		t.Errorf("expected overridden level:\n%s", out)
	}
}

func TestConfigCommand_InvalidLogLevel(t *testing.T) {
	if _, err := runApp(t, "--config", emptyConfig(t), "--log-level", "loud", "config"); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestConfigCommand_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := runApp(t, "--config", missing, "config"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestInstall_ConflictingAnswers(t *testing.T) {
	_, err := runApp(t, "--config", emptyConfig(t), "--yes", "--no-prompt")
	if !errors.Is(err, errConflictingAnswers) {
		t.Errorf("error = %v, want %v", err, errConflictingAnswers)
	}
}

func TestDiagCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "bundle.zip")
	if _, err := runApp(t, "--config", emptyConfig(t), "diag", "--skip-verify", "--output", output); err != nil {
		t.Fatalf("diag error = %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("bundle not written: %v", err)
	}
}
