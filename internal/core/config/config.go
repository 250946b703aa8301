// Package config loads and validates the resumepilot configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/resumepilot/internal/core/styles"
	"github.com/colonyops/resumepilot/internal/core/suggest"
)

// Config holds the application configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Stream      StreamConfig      `yaml:"stream"`
	Poll        PollConfig        `yaml:"poll"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Render      RenderConfig      `yaml:"render"`
	Database    DatabaseConfig    `yaml:"database"`
	DataDir     string            `yaml:"-"` // set by caller, not from config file
}

// APIConfig configures the backend connection.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	OptimizeTimeout time.Duration `yaml:"optimize_timeout"`
}

// StreamConfig holds the push-stream policy.
type StreamConfig struct {
	KeepAliveWhenBackgrounded bool `yaml:"keep_alive_when_backgrounded"`
}

// PollConfig controls status polling back-off.
type PollConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

// SuggestionsConfig configures the suggestion parser.
type SuggestionsConfig struct {
	Markers suggest.Markers `yaml:"markers"`
}

// RenderConfig configures terminal output.
type RenderConfig struct {
	Theme    string `yaml:"theme"`     // palette for styled output
	Style    string `yaml:"style"`     // glamour style name or style file; empty derives from theme
	WordWrap int    `yaml:"word_wrap"` // 0 disables wrapping
}

// DatabaseConfig tunes the local SQLite store.
type DatabaseConfig struct {
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// DefaultBaseURL is the backend used when none is configured.
const DefaultBaseURL = "http://localhost:8080/api/v1"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:         DefaultBaseURL,
			Timeout:         10 * time.Second,
			OptimizeTimeout: 5 * time.Minute,
		},
		Stream: StreamConfig{
			KeepAliveWhenBackgrounded: true,
		},
		Poll: PollConfig{
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsed:      15 * time.Minute,
		},
		Suggestions: SuggestionsConfig{
			Markers: suggest.DefaultMarkers,
		},
		Render: RenderConfig{
			Theme:    styles.DefaultTheme,
			WordWrap: 100,
		},
		Database: DatabaseConfig{
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 4,
		},
	}
}

// Load reads configuration from configPath and sets the data directory. A
// missing or empty path yields the defaults.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.API.OptimizeTimeout == 0 {
		c.API.OptimizeTimeout = defaults.API.OptimizeTimeout
	}
	if c.Poll.InitialInterval == 0 {
		c.Poll.InitialInterval = defaults.Poll.InitialInterval
	}
	if c.Poll.MaxInterval == 0 {
		c.Poll.MaxInterval = defaults.Poll.MaxInterval
	}
	if c.Poll.MaxElapsed == 0 {
		c.Poll.MaxElapsed = defaults.Poll.MaxElapsed
	}
	if c.Suggestions.Markers.Advantages == "" {
		c.Suggestions.Markers.Advantages = defaults.Suggestions.Markers.Advantages
	}
	if c.Suggestions.Markers.Weaknesses == "" {
		c.Suggestions.Markers.Weaknesses = defaults.Suggestions.Markers.Weaknesses
	}
	if c.Suggestions.Markers.Improvements == "" {
		c.Suggestions.Markers.Improvements = defaults.Suggestions.Markers.Improvements
	}
	if c.Render.Theme == "" {
		c.Render.Theme = defaults.Render.Theme
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
}

// Validate checks structural constraints that do not need I/O.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout < 0 || c.API.OptimizeTimeout < 0 {
		return fmt.Errorf("api timeouts cannot be negative")
	}

	if c.Poll.InitialInterval < 0 || c.Poll.MaxInterval < 0 || c.Poll.MaxElapsed < 0 {
		return fmt.Errorf("poll intervals cannot be negative")
	}
	if c.Poll.InitialInterval > c.Poll.MaxInterval {
		return fmt.Errorf("poll.initial_interval (%s) exceeds poll.max_interval (%s)", c.Poll.InitialInterval, c.Poll.MaxInterval)
	}
	if c.Poll.MaxElapsed > 0 && c.Poll.MaxElapsed < c.Poll.MaxInterval {
		return fmt.Errorf("poll.max_elapsed (%s) is shorter than poll.max_interval (%s)", c.Poll.MaxElapsed, c.Poll.MaxInterval)
	}

	m := c.Suggestions.Markers
	if m.Advantages == m.Weaknesses || m.Advantages == m.Improvements || m.Weaknesses == m.Improvements {
		return fmt.Errorf("suggestions.markers must be distinct")
	}

	if _, ok := styles.GetPalette(c.Render.Theme); !ok {
		return fmt.Errorf("render.theme %q is not one of %v", c.Render.Theme, styles.ThemeNames())
	}

	if c.Render.WordWrap < 0 {
		return fmt.Errorf("render.word_wrap cannot be negative")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	return nil
}

// LogFile returns the default log file path inside the data directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "resumepilot.log")
}
