package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"intelaccel/internal/logging"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tilde prefix", "~/state/install.log", filepath.Join(home, "state/install.log")},
		{"bare tilde", "~", home},
		{"absolute path untouched", "/var/log/x.log", "/var/log/x.log"},
		{"tilde user form untouched", "~other/x", "~other/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandHome(tt.input); got != tt.want {
				t.Errorf("ExpandHome(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnsureDirectory(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "scratch")
			},
		},
		{
			name: "existing directory is not an error",
			setup: func(t *testing.T) string {
				t.Helper()
				return t.TempDir()
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "a", "b", "c")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)

			if err := EnsureDirectory(path); err != nil {
				t.Fatalf("EnsureDirectory() error = %v", err)
			}
			// second call must also succeed
			if err := EnsureDirectory(path); err != nil {
				t.Fatalf("EnsureDirectory() second call error = %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("directory not created: %v", err)
			}
			if !info.IsDir() {
				t.Error("path is not a directory")
			}
		})
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	ok, err := Exists(file)
	if err != nil || !ok {
		t.Errorf("Exists(existing) = %v, %v; want true, nil", ok, err)
	}

	ok, err = Exists(filepath.Join(dir, "missing"))
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}
}

func TestRemoveTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "extract")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "stale.bin"), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := RemoveTree(dir); err != nil {
		t.Fatalf("RemoveTree() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory still exists after RemoveTree: %v", err)
	}

	if err := RemoveTree(dir); err != nil {
		t.Errorf("RemoveTree() on missing path error = %v", err)
	}
}

func TestRemoveTree_RefusesRoot(t *testing.T) {
	for _, path := range []string{"/", "", "."} {
		if err := RemoveTree(path); err == nil {
			t.Errorf("RemoveTree(%q) should fail", path)
		}
	}
}

func TestCommitFile(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "file.part")
	final := filepath.Join(dir, "file")
	if err := os.WriteFile(tmp, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	logger := logging.NewLogger(logging.LevelError)
	if err := CommitFile(tmp, final, logger); err != nil {
		t.Fatalf("CommitFile() error = %v", err)
	}

	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("final content = %q, want %q", data, "payload")
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp file should be gone after commit")
	}
}

func TestCommitFile_RenameFailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "file.part")
	if err := os.WriteFile(tmp, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	final := filepath.Join(dir, "missing-dir", "file")
	logger := logging.NewLogger(logging.LevelError)
	if err := CommitFile(tmp, final, logger); err == nil {
		t.Fatal("CommitFile() should fail when target dir is missing")
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp file should be removed on failure")
	}
}

func TestCloseWithError(t *testing.T) {
	called := false
	CloseWithError(func() error {
		called = true
		return errors.New("boom")
	}, logging.NewLogger(logging.LevelError), "archive")

	if !called {
		t.Error("closer was not called")
	}
}
