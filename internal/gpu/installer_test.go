package gpu

import (
	"context"
	"errors"
	"strings"
	"testing"

	"intelaccel/internal/config"
)

type fakePackages struct {
	calls        []string
	registered   bool
	installed    [][]string
	failOn       string
	updateCalled int
}

func (f *fakePackages) fail(step string) error {
	if f.failOn == step {
		return errors.New(step + " failed")
	}
	return nil
}

func (f *fakePackages) Update(context.Context) error {
	f.calls = append(f.calls, "update")
	f.updateCalled++
	return f.fail("update")
}

func (f *fakePackages) Install(_ context.Context, pkgs ...string) error {
	f.calls = append(f.calls, "install")
	f.installed = append(f.installed, pkgs)
	return f.fail("install")
}

func (f *fakePackages) AddRepository(_ context.Context, repo string) (bool, error) {
	f.calls = append(f.calls, "add-repo")
	if err := f.fail("add-repo"); err != nil {
		return false, err
	}
	if f.registered {
		return false, nil
	}
	f.registered = true
	return true, nil
}

type fakeGroups struct {
	members map[string]bool
	err     error
}

func (f *fakeGroups) IsMember(username, group string) (bool, error) {
	return f.members[username+":"+group], nil
}

func (f *fakeGroups) AddToGroup(_ context.Context, username, group string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := username + ":" + group
	if f.members[key] {
		return false, nil
	}
	f.members[key] = true
	return true, nil
}

func TestInstaller_Install(t *testing.T) {
	cfg := config.DefaultConfig().GPU
	pkgs := &fakePackages{}
	groups := &fakeGroups{members: map[string]bool{}}

	report, err := NewInstaller(cfg, pkgs, groups, "alex", nil).Install(context.Background())
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if got := strings.Join(pkgs.calls, ","); got != "add-repo,update,install" {
		t.Errorf("call order = %s", got)
	}
	if strings.Join(pkgs.installed[0], " ") != strings.Join(cfg.Packages, " ") {
		t.Errorf("installed = %v, want configured order %v", pkgs.installed[0], cfg.Packages)
	}
	if !report.RepositoryAdded || !report.GroupAdded {
		t.Errorf("report = %+v", report)
	}
	if !groups.members["alex:render"] {
		t.Error("user should be in render group")
	}
}

func TestInstaller_RerunIsIdempotent(t *testing.T) {
	cfg := config.DefaultConfig().GPU
	pkgs := &fakePackages{registered: true}
	groups := &fakeGroups{members: map[string]bool{"alex:render": true}}

	report, err := NewInstaller(cfg, pkgs, groups, "alex", nil).Install(context.Background())
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if report.RepositoryAdded || report.GroupAdded {
		t.Errorf("expected no changes on rerun, report = %+v", report)
	}
}

func TestInstaller_Failures(t *testing.T) {
	for _, step := range []string{"add-repo", "update", "install"} {
		t.Run(step, func(t *testing.T) {
			pkgs := &fakePackages{failOn: step}
			groups := &fakeGroups{members: map[string]bool{}}

			_, err := NewInstaller(config.DefaultConfig().GPU, pkgs, groups, "alex", nil).Install(context.Background())
			if err == nil {
				t.Fatal("Install() should fail")
			}
			if groups.members["alex:render"] {
				t.Error("group change must not happen after a failed step")
			}
		})
	}
}

func TestInstaller_GroupFailure(t *testing.T) {
	pkgs := &fakePackages{}
	groups := &fakeGroups{members: map[string]bool{}, err: errors.New("usermod failed")}

	_, err := NewInstaller(config.DefaultConfig().GPU, pkgs, groups, "alex", nil).Install(context.Background())
	if err == nil || !strings.Contains(err.Error(), "render") {
		t.Errorf("Install() error = %v", err)
	}
}
