// Package config provides configuration loading for stagehand.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. Per-repository settings (the project name) live in a small
// .stagehand.json document at the repository root, read separately by
// the project package.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete stagehand configuration.
type Config struct {
	Git         GitConfig         `koanf:"git"`
	Agent       AgentConfig       `koanf:"agent"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// GitConfig holds git invocation settings.
type GitConfig struct {
	// Timeout bounds worktree/branch/merge operations.
	Timeout Duration `koanf:"timeout"`

	// StatusTimeout bounds status/diff queries, which degrade to an
	// "unable to check" marker on expiry instead of failing the report.
	StatusTimeout Duration `koanf:"status_timeout"`
}

// AgentConfig holds agent supervision settings.
type AgentConfig struct {
	// PollInterval is the per-agent liveness check interval.
	PollInterval Duration `koanf:"poll_interval"`

	// SessionPrefix prefixes tmux session names.
	SessionPrefix string `koanf:"session_prefix"`

	// RetentionLimit caps retained terminal (completed/failed) agent
	// records. Oldest terminal records are evicted first; running
	// agents are never evicted.
	RetentionLimit int `koanf:"retention_limit"`

	// TmuxTimeout bounds individual tmux invocations.
	TmuxTimeout Duration `koanf:"tmux_timeout"`
}

// CoordinatorConfig holds workflow chaining settings.
type CoordinatorConfig struct {
	// ScanInterval is the global signal-file scan period.
	ScanInterval Duration `koanf:"scan_interval"`

	// WatchEnabled additionally watches worktree directories with
	// fsnotify for low-latency signal pickup between scans.
	WatchEnabled bool `koanf:"watch_enabled"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Git: GitConfig{
			Timeout:       Duration(30 * time.Second),
			StatusTimeout: Duration(5 * time.Second),
		},
		Agent: AgentConfig{
			PollInterval:   Duration(5 * time.Second),
			SessionPrefix:  "stagehand",
			RetentionLimit: 200,
			TmuxTimeout:    Duration(10 * time.Second),
		},
		Coordinator: CoordinatorConfig{
			ScanInterval: Duration(15 * time.Second),
			WatchEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Git.Timeout.Duration() <= 0 {
		return errors.New("git timeout must be positive")
	}
	if c.Git.StatusTimeout.Duration() <= 0 {
		return errors.New("git status timeout must be positive")
	}
	if c.Agent.PollInterval.Duration() <= 0 {
		return errors.New("agent poll interval must be positive")
	}
	if c.Agent.SessionPrefix == "" {
		return errors.New("agent session prefix cannot be empty")
	}
	if c.Agent.RetentionLimit < 0 {
		return fmt.Errorf("agent retention limit must be >= 0, got %d", c.Agent.RetentionLimit)
	}
	if c.Coordinator.ScanInterval.Duration() <= 0 {
		return errors.New("coordinator scan interval must be positive")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}
