package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/resumepilot/internal/core/suggest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(dataDir, "nope.yaml"), dataDir)
	require.NoError(t, err)

	want := DefaultConfig()
	want.DataDir = dataDir
	assert.Equal(t, want, *cfg)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.True(t, cfg.Stream.KeepAliveWhenBackgrounded)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://resume.example.com/api/v1
  optimize_timeout: 2m
stream:
  keep_alive_when_backgrounded: false
poll:
  max_interval: 30s
suggestions:
  markers:
    advantages: Strengths
render:
  word_wrap: 0
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://resume.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.API.OptimizeTimeout)
	assert.False(t, cfg.Stream.KeepAliveWhenBackgrounded)
	assert.Equal(t, time.Second, cfg.Poll.InitialInterval)
	assert.Equal(t, 30*time.Second, cfg.Poll.MaxInterval)
	assert.Equal(t, 15*time.Minute, cfg.Poll.MaxElapsed)
	assert.Equal(t, "Strengths", cfg.Suggestions.Markers.Advantages)
	assert.Equal(t, suggest.DefaultMarkers.Weaknesses, cfg.Suggestions.Markers.Weaknesses)
	assert.Equal(t, "tokyo-night", cfg.Render.Theme)
	assert.Empty(t, cfg.Render.Style)
	assert.Equal(t, 0, cfg.Render.WordWrap)
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "api: [not a map")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: localhost:8080\n")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: "data directory"},
		{name: "relative url", mutate: func(c *Config) { c.API.BaseURL = "/api/v1" }, wantErr: "api.base_url"},
		{name: "ftp url", mutate: func(c *Config) { c.API.BaseURL = "ftp://host/api" }, wantErr: "api.base_url"},
		{name: "negative timeout", mutate: func(c *Config) { c.API.Timeout = -time.Second }, wantErr: "timeouts"},
		{
			name:    "initial above max",
			mutate:  func(c *Config) { c.Poll.InitialInterval = time.Minute },
			wantErr: "poll.initial_interval",
		},
		{
			name:    "elapsed below max interval",
			mutate:  func(c *Config) { c.Poll.MaxElapsed = 5 * time.Second },
			wantErr: "poll.max_elapsed",
		},
		{
			name:    "duplicate markers",
			mutate:  func(c *Config) { c.Suggestions.Markers.Improvements = c.Suggestions.Markers.Advantages },
			wantErr: "distinct",
		},
		{name: "unknown theme", mutate: func(c *Config) { c.Render.Theme = "neon" }, wantErr: "render.theme"},
		{name: "negative wrap", mutate: func(c *Config) { c.Render.WordWrap = -1 }, wantErr: "word_wrap"},
		{name: "no connections", mutate: func(c *Config) { c.Database.MaxOpenConns = 0 }, wantErr: "max_open_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_LogFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/rp"
	assert.Equal(t, filepath.Join("/tmp/rp", "resumepilot.log"), cfg.LogFile())
}
