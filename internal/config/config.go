// Package config holds the session configuration for paratest: the
// resource bounds of spec.md §5 (num_workers, max_queue_size), the
// worktree pool's base directory and reset-failure cap, the runner
// invocation shape, and the ambient notification/web settings.
//
// Grounded directly on internal/config/config.go's TOML-via-
// pelletier/go-toml/v2 shape, defaults, and `~` expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all session configuration.
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Runner        RunnerConfig        `toml:"runner"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds the worktree pool and queue resource bounds.
type GeneralConfig struct {
	RepoDir         string `toml:"repo_dir"`
	BaseBranch      string `toml:"base_branch"`
	WorktreeDir     string `toml:"worktree_dir"`
	NumWorkers      int    `toml:"num_workers"`
	MaxQueueSize    int    `toml:"max_queue_size"`
	ResetFailureCap int    `toml:"reset_failure_cap"`
	DatabasePath    string `toml:"database_path"`
}

// RunnerConfig holds the default runner invocation shape.
type RunnerConfig struct {
	Command    string        `toml:"command"`
	Timeout    time.Duration `toml:"timeout"`
	MaxRetries int           `toml:"max_retries"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds HTTP submission surface settings.
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			WorktreeDir:     filepath.Join(home, ".paratest", "worktrees"),
			NumWorkers:      3,
			MaxQueueSize:    100,
			ResetFailureCap: 3,
			DatabasePath:    filepath.Join(home, ".paratest", "sessions.db"),
		},
		Runner: RunnerConfig{
			Timeout:    5 * time.Minute,
			MaxRetries: 1,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
// if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.General.RepoDir = ExpandPath(cfg.General.RepoDir)
	cfg.General.WorktreeDir = ExpandPath(cfg.General.WorktreeDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "paratest", "config.toml")
}
