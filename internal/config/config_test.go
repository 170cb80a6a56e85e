package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.General.NumWorkers != 3 {
		t.Errorf("NumWorkers = %d, want 3", cfg.General.NumWorkers)
	}
	if cfg.General.MaxQueueSize != 100 {
		t.Errorf("MaxQueueSize = %d, want 100", cfg.General.MaxQueueSize)
	}
	if cfg.General.ResetFailureCap != 3 {
		t.Errorf("ResetFailureCap = %d, want 3", cfg.General.ResetFailureCap)
	}
	if cfg.Runner.Timeout != 5*time.Minute {
		t.Errorf("Runner.Timeout = %s, want 5m", cfg.Runner.Timeout)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("Web.Host = %q, want 127.0.0.1", cfg.Web.Host)
	}
	if !cfg.Notifications.Desktop {
		t.Error("Notifications.Desktop should default to true")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[general]
repo_dir = "/test/repo"
num_workers = 5

[web]
port = 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.RepoDir != "/test/repo" {
		t.Errorf("RepoDir = %q, want /test/repo", cfg.General.RepoDir)
	}
	if cfg.General.NumWorkers != 5 {
		t.Errorf("NumWorkers = %d, want 5", cfg.General.NumWorkers)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d, want 9000", cfg.Web.Port)
	}
	// Values not present in the file keep their defaults.
	if cfg.General.MaxQueueSize != 100 {
		t.Errorf("MaxQueueSize = %d, want default 100", cfg.General.MaxQueueSize)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.NumWorkers != Default().General.NumWorkers {
		t.Errorf("got NumWorkers=%d, want default", cfg.General.NumWorkers)
	}
}

func TestLoad_ExpandsTildePaths(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[general]\nworktree_dir = \"~/wt\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, "wt")
	if cfg.General.WorktreeDir != want {
		t.Errorf("WorktreeDir = %q, want %q", cfg.General.WorktreeDir, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDefaultConfigPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".config", "paratest", "config.toml")
	if got := DefaultConfigPath(); got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}
}
