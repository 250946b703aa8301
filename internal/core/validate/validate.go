// Package validate provides shared validation functions for command input.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/resumepilot/internal/api"
)

// Required rejects values that are empty after trimming whitespace.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("is required")
	}
	return nil
}

// Email checks that a non-empty value is an address the request DTOs will
// accept. Empty is allowed; combine with Required when the address is
// mandatory.
func Email(addr string) error {
	if err := api.Var(addr, "omitempty,email"); err != nil {
		return fmt.Errorf("%q is not a valid email address", addr)
	}
	return nil
}

// RequiredField returns a criterio validator for a mandatory value.
func RequiredField(field, value string) error {
	return criterio.Run(field, value, Required)
}

// EmailField returns a criterio validator for an optional email address.
func EmailField(field, addr string) error {
	return criterio.Run(field, addr, Email)
}
