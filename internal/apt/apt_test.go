package apt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"intelaccel/internal/logging"
	"intelaccel/internal/system"
)

type recordingRunner struct {
	commands []system.Command
	failOn   string
}

func (r *recordingRunner) Run(_ context.Context, cmd system.Command) (system.Result, error) {
	r.commands = append(r.commands, cmd)
	if r.failOn != "" && strings.Contains(cmd.String(), r.failOn) {
		return system.Result{ExitCode: 100}, errors.New("exit status 100")
	}
	return system.Result{}, nil
}

func (r *recordingRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func newTestManager(t *testing.T, runner system.Runner) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	return NewManager(runner, logging.NewLogger(logging.LevelError)).WithSourcesDir(dir), dir
}

func TestManager_Update(t *testing.T) {
	runner := &recordingRunner{}
	m, _ := newTestManager(t, runner)

	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if len(runner.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(runner.commands))
	}
	cmd := runner.commands[0]
	if cmd.Name != "apt-get" || !cmd.Elevated || cmd.Args[0] != "update" {
		t.Errorf("unexpected command: %s", cmd.String())
	}
}

func TestManager_UpdateFailure(t *testing.T) {
	runner := &recordingRunner{failOn: "update"}
	m, _ := newTestManager(t, runner)

	err := m.Update(context.Background())
	if err == nil {
		t.Fatal("Update() should fail")
	}
	if !strings.Contains(err.Error(), "refresh package index") {
		t.Errorf("error = %v", err)
	}
}

func TestManager_InstallKeepsOrder(t *testing.T) {
	runner := &recordingRunner{}
	m, _ := newTestManager(t, runner)

	pkgs := []string{"libze-intel-gpu1", "libze1", "intel-opencl-icd"}
	if err := m.Install(context.Background(), pkgs...); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	got := runner.commands[0].Args
	want := []string{"install", "-y", "libze-intel-gpu1", "libze1", "intel-opencl-icd"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Args = %v, want %v", got, want)
	}
	if len(runner.commands[0].Env) == 0 || runner.commands[0].Env[0] != "DEBIAN_FRONTEND=noninteractive" {
		t.Errorf("Env = %v", runner.commands[0].Env)
	}
}

func TestManager_InstallEmptyIsNoop(t *testing.T) {
	runner := &recordingRunner{}
	m, _ := newTestManager(t, runner)

	if err := m.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(runner.commands) != 0 {
		t.Errorf("expected no commands, got %d", len(runner.commands))
	}
}

func TestManager_AddRepository(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wantAdded bool
	}{
		{
			name:      "not registered",
			files:     map[string]string{"other.list": "deb http://example.com/ubuntu noble main\n"},
			wantAdded: true,
		},
		{
			name: "registered deb822",
			files: map[string]string{
				"kobuk-team-ubuntu-intel-graphics-noble.sources": "Types: deb\nURIs: https://ppa.launchpadcontent.net/kobuk-team/intel-graphics/ubuntu/\nSuites: noble\n",
			},
			wantAdded: false,
		},
		{
			name: "registered legacy list",
			files: map[string]string{
				"kobuk.list": "deb http://ppa.launchpad.net/kobuk-team/intel-graphics/ubuntu noble main\n",
			},
			wantAdded: false,
		},
		{
			name: "similar name does not match",
			files: map[string]string{
				"kobuk.list": "deb https://ppa.launchpadcontent.net/kobuk-team/intel-graphics-staging/ubuntu noble main\n",
			},
			wantAdded: true,
		},
		{
			name: "ignores non-source files",
			files: map[string]string{
				"kobuk.list.save": "deb https://ppa.launchpadcontent.net/kobuk-team/intel-graphics/ubuntu noble main\n",
			},
			wantAdded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &recordingRunner{}
			m, dir := newTestManager(t, runner)
			for name, content := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			added, err := m.AddRepository(context.Background(), "ppa:kobuk-team/intel-graphics")
			if err != nil {
				t.Fatalf("AddRepository() error = %v", err)
			}
			if added != tt.wantAdded {
				t.Errorf("added = %v, want %v", added, tt.wantAdded)
			}
			if tt.wantAdded && len(runner.commands) != 1 {
				t.Errorf("expected add-apt-repository to run, got %d commands", len(runner.commands))
			}
			if !tt.wantAdded && len(runner.commands) != 0 {
				t.Errorf("expected no commands for registered repo, got %d", len(runner.commands))
			}
		})
	}
}

func TestManager_AddRepositoryMissingSourcesDir(t *testing.T) {
	runner := &recordingRunner{}
	m := NewManager(runner, nil).WithSourcesDir(filepath.Join(t.TempDir(), "missing"))

	added, err := m.AddRepository(context.Background(), "ppa:kobuk-team/intel-graphics")
	if err != nil {
		t.Fatalf("AddRepository() error = %v", err)
	}
	if !added {
		t.Error("expected repository to be added")
	}
	if runner.commands[0].Name != "add-apt-repository" {
		t.Errorf("command = %s", runner.commands[0].String())
	}
}

func TestManager_AddRepositoryFailure(t *testing.T) {
	runner := &recordingRunner{failOn: "add-apt-repository"}
	m, _ := newTestManager(t, runner)

	if _, err := m.AddRepository(context.Background(), "ppa:kobuk-team/intel-graphics"); err == nil {
		t.Fatal("AddRepository() should fail")
	}
}
