package doctor

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/resumepilot/internal/core/config"
)

// ConfigCheck runs deep configuration validation.
type ConfigCheck struct {
	cfg        *config.Config
	configPath string
}

// NewConfigCheck creates a config check for cfg loaded from configPath.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, configPath: configPath}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	err := c.cfg.ValidateDeep(c.configPath)

	var fieldErrs criterio.FieldErrors
	switch {
	case err == nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "config",
			Status: StatusPass,
			Detail: c.source(),
		})
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			result.Items = append(result.Items, CheckItem{
				Label:  fe.Field,
				Status: StatusFail,
				Detail: fe.Err.Error(),
			})
		}
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  "config",
			Status: StatusFail,
			Detail: err.Error(),
		})
	}

	for _, w := range c.cfg.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += "." + w.Item
		}
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}

func (c *ConfigCheck) source() string {
	if c.configPath == "" {
		return "defaults"
	}
	return c.configPath
}
