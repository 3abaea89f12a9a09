package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	names := make(map[string]bool)
	for i, cluster := range cfg.Clusters {
		if names[cluster.Name] {
			return fmt.Errorf("clusters[%d]: duplicate cluster name %q", i, cluster.Name)
		}
		names[cluster.Name] = true

		users := make(map[string]bool)
		for j, user := range cluster.Users {
			if users[user.Name] {
				return fmt.Errorf("clusters[%d].users[%d]: duplicate user name %q", i, j, user.Name)
			}
			users[user.Name] = true
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}

	return err
}
