package config

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour/styles"
	"github.com/hay-kot/criterio"
)

// AutoStyle selects a dark or light style from the terminal background.
const AutoStyle = "auto"

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including file accessibility and render style lookup. The configPath
// argument specifies the config file location to validate (empty string skips
// the config file check). Validate runs first for structural checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("render.style", c.Render.Style, knownStyle),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.API.Timeout > 0 && c.API.OptimizeTimeout > 0 && c.API.OptimizeTimeout < c.API.Timeout {
		warnings = append(warnings, ValidationWarning{
			Category: "API",
			Item:     "optimize_timeout",
			Message:  fmt.Sprintf("optimize_timeout (%s) is shorter than the default timeout (%s)", c.API.OptimizeTimeout, c.API.Timeout),
		})
	}

	if !c.Stream.KeepAliveWhenBackgrounded {
		warnings = append(warnings, ValidationWarning{
			Category: "Stream",
			Item:     "keep_alive_when_backgrounded",
			Message:  "streams end with a suspended error on SIGHUP",
		})
	}

	return warnings
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// knownStyle accepts an empty style, a built-in glamour style name, or a path
// to a style file.
func knownStyle(style string) error {
	if style == "" || style == AutoStyle {
		return nil
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return nil
	}

	info, err := os.Stat(style)
	if err != nil {
		return fmt.Errorf("unknown style %q", style)
	}
	if info.IsDir() {
		return fmt.Errorf("style path %s is a directory", style)
	}
	return nil
}
