package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/colonyops/resumepilot/internal/core/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string
	APIURL     string

	// ProfilerPort enables the pprof server when positive
	ProfilerPort int

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "resumepilot", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "resumepilot")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/resumepilot/resumepilot.log
// On Linux: $XDG_STATE_HOME/resumepilot/resumepilot.log (defaults to ~/.local/state/...)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "resumepilot", "resumepilot.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "resumepilot", "resumepilot.log")
	}

	return filepath.Join(home, ".local", "state", "resumepilot", "resumepilot.log")
}
