package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/param-gate/paramgate/pkg/validate"
)

// RegisterCustomValidators registers paramgate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// audit_output: "stdout", "file://<absolute-dir>", or "sqlite://<path>"
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	// error_view: name of a registered error view
	if err := v.RegisterValidation("error_view", validateErrorView); err != nil {
		return fmt.Errorf("failed to register error_view validator: %w", err)
	}
	// http_status: numeric code or symbolic name
	if err := v.RegisterValidation("http_status", validateHTTPStatus); err != nil {
		return fmt.Errorf("failed to register http_status validator: %w", err)
	}
	return nil
}

// validateAuditOutput validates the audit output field.
// Valid values: "stdout", "file://<absolute-dir>", or "sqlite://<path>"
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "stdout" {
		return true
	}

	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}

	if strings.HasPrefix(output, "sqlite://") {
		return strings.TrimPrefix(output, "sqlite://") != ""
	}

	return false
}

// validateErrorView checks the name against the error view registry.
func validateErrorView(fl validator.FieldLevel) bool {
	_, ok := validate.LookupView(fl.Field().String())
	return ok
}

// validateHTTPStatus accepts "422"-style codes and symbolic names like
// "unprocessable_entity".
func validateHTTPStatus(fl validator.FieldLevel) bool {
	_, err := resolveStatus(fl.Field().String())
	return err == nil
}

// Validate validates the Config using struct tags and custom rules.
// Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout', 'file://<absolute-dir>', or 'sqlite://<path>'", field)
	case "error_view":
		return fmt.Sprintf("%s must name a registered error view", field)
	case "http_status":
		return fmt.Sprintf("%s must be an HTTP status code or name (e.g. 422 or unprocessable_entity)", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
