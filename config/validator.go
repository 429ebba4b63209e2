// Package config validates pipeline configuration values before any
// container is touched, so a typo fails fast instead of mid-run.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/distribution/reference"
	"github.com/docker/go-connections/nat"
	"github.com/go-playground/validator/v10"
	"github.com/netresearch/go-cron"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error for field '%s': %s (value: %v)",
		e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Validator accumulates configuration validation errors.
type Validator struct {
	errors   ValidationErrors
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors:   make(ValidationErrors, 0),
		validate: validator.New(),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field string, value any, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Err returns the accumulated errors, or nil when everything validated.
func (v *Validator) Err() error {
	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// ValidateRequired validates that a field is not empty
func (v *Validator) ValidateRequired(field string, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, value, "is required")
	}
}

// ValidateImage validates a Docker image reference, including registry
// hosts and digests.
func (v *Validator) ValidateImage(field string, value string) {
	if value == "" {
		return
	}

	if _, err := reference.ParseNormalizedNamed(value); err != nil {
		v.AddError(field, value, fmt.Sprintf("invalid image reference: %v", err))
	}
}

// ValidatePortSpecs validates compose-style port mappings like "5433:5432".
func (v *Validator) ValidatePortSpecs(field string, specs []string) {
	if len(specs) == 0 {
		return
	}

	if _, _, err := nat.ParsePortSpecs(specs); err != nil {
		v.AddError(field, specs, fmt.Sprintf("invalid port mapping: %v", err))
	}
}

// ValidateSchedule validates a cron schedule expression.
func (v *Validator) ValidateSchedule(field string, value string) {
	if value == "" {
		return
	}

	if _, err := cron.FullParser().Parse(value); err != nil {
		v.AddError(field, value, fmt.Sprintf("invalid schedule: %v", err))
	}
}

// ValidateDSN validates a postgres connection string carries a scheme, host
// and database name.
func (v *Validator) ValidateDSN(field string, value string) {
	if value == "" {
		return
	}

	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, value, fmt.Sprintf("invalid connection string: %v", err))
		return
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		v.AddError(field, value, "connection string must use the postgres:// or postgresql:// scheme")
		return
	}
	if u.Host == "" {
		v.AddError(field, value, "connection string has no host")
		return
	}
	if strings.Trim(u.Path, "/") == "" {
		v.AddError(field, value, "connection string has no database name")
	}
}

// ValidateEmail validates an address list like "a@x.dev,b@x.dev".
func (v *Validator) ValidateEmail(field string, value string) {
	if value == "" {
		return
	}

	for _, addr := range strings.Split(value, ",") {
		addr = strings.TrimSpace(addr)
		if err := v.validate.Var(addr, "email"); err != nil {
			v.AddError(field, value, fmt.Sprintf("%q is not a valid email address", addr))
		}
	}
}

// ValidateURL validates that a string is a valid absolute URL.
func (v *Validator) ValidateURL(field string, value string) {
	if value == "" {
		return
	}

	if err := v.validate.Var(value, "url"); err != nil {
		v.AddError(field, value, "must be a valid URL")
	}
}

// ValidateLogLevel validates a logging level name.
func (v *Validator) ValidateLogLevel(field string, value string) {
	if value == "" {
		return
	}

	validLevels := []string{"debug", "info", "notice", "warning", "error", "critical"}
	if !slices.Contains(validLevels, strings.ToLower(value)) {
		v.AddError(field, value, "invalid log level (use: debug, info, notice, warning, error, critical)")
	}
}

// ValidateRange validates that a number is within range
func (v *Validator) ValidateRange(field string, value int, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field, value, fmt.Sprintf("must be between %d and %d", minVal, maxVal))
	}
}

// ValidatePercent validates a percentage value.
func (v *Validator) ValidatePercent(field string, value float64) {
	if value < 0 || value > 100 {
		v.AddError(field, value, "must be between 0 and 100")
	}
}
