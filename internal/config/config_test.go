package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30*time.Second, cfg.Git.Timeout.Duration())
	assert.Equal(t, 5*time.Second, cfg.Git.StatusTimeout.Duration())
	assert.Equal(t, 5*time.Second, cfg.Agent.PollInterval.Duration())
	assert.Equal(t, "stagehand", cfg.Agent.SessionPrefix)
	assert.Equal(t, 200, cfg.Agent.RetentionLimit)
	assert.Equal(t, 15*time.Second, cfg.Coordinator.ScanInterval.Duration())
	assert.True(t, cfg.Coordinator.WatchEnabled)

	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero git timeout",
			mutate:  func(c *Config) { c.Git.Timeout = 0 },
			wantErr: "git timeout",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Agent.PollInterval = 0 },
			wantErr: "poll interval",
		},
		{
			name:    "empty session prefix",
			mutate:  func(c *Config) { c.Agent.SessionPrefix = "" },
			wantErr: "session prefix",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Agent.RetentionLimit = -1 },
			wantErr: "retention limit",
		},
		{
			name:    "bad logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("45s")))
	assert.Equal(t, 45*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-1s")))
	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Agent.SessionPrefix, cfg.Agent.SessionPrefix)
}

func TestLoadWithFile_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "agent:\n  session_prefix: crew\n  retention_limit: 50\ncoordinator:\n  scan_interval: 3s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "crew", cfg.Agent.SessionPrefix)
	assert.Equal(t, 50, cfg.Agent.RetentionLimit)
	assert.Equal(t, 3*time.Second, cfg.Coordinator.ScanInterval.Duration())
	// Untouched sections keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Git.Timeout.Duration())
}

func TestLoadWithFile_RejectsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}
