package provider

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidateConfigFields validates configuration against provided field definitions
func ValidateConfigFields(providerName string, config map[string]string, fields []ConfigField) error {
	for _, field := range fields {
		value, exists := config[field.Key]
		if !exists || strings.TrimSpace(value) == "" {
			if field.Required {
				reason := "is missing"
				if exists {
					reason = "cannot be empty"
				}
				return &ConfigError{Driver: providerName, Key: field.Key, Reason: reason}
			}
			continue
		}

		// Type-specific validation
		if err := validateFieldType(providerName, field, value); err != nil {
			return err
		}

		// Pattern validation
		if err := validateFieldPattern(providerName, field, value); err != nil {
			return err
		}

		// Length validation
		if err := validateFieldLength(providerName, field, value); err != nil {
			return err
		}
	}

	return nil
}

// ApplyDefaults returns a copy of config with defaults filled in for absent keys
func ApplyDefaults(config map[string]string, fields []ConfigField) Settings {
	settings := make(Settings, len(config)+len(fields))
	for k, v := range config {
		settings[k] = v
	}
	for _, field := range fields {
		if field.Default == "" {
			continue
		}
		if strings.TrimSpace(settings[field.Key]) == "" {
			settings[field.Key] = field.Default
		}
	}
	return settings
}

// Settings is a validated, defaulted driver configuration
type Settings map[string]string

// Get returns the value for key or an empty string
func (s Settings) Get(key string) string {
	return s[key]
}

// Duration parses key as a Go duration and falls back to def
func (s Settings) Duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s[key]); err == nil && d > 0 {
		return d
	}
	return def
}

// validateFieldType validates field based on its type
func validateFieldType(providerName string, field ConfigField, value string) error {
	switch field.Type {
	case "url":
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Driver: providerName, Key: field.Key, Reason: "must be an absolute URL"}
		}
	case "duration":
		if _, err := time.ParseDuration(value); err != nil {
			return &ConfigError{Driver: providerName, Key: field.Key, Reason: "must be a duration like 30s"}
		}
	case "currency":
		if _, err := ParseCurrency(value); err != nil {
			return &ConfigError{Driver: providerName, Key: field.Key, Reason: "must be T or R"}
		}
	case "boolean":
		if value != "true" && value != "false" {
			return &ConfigError{Driver: providerName, Key: field.Key, Reason: "must be 'true' or 'false'"}
		}
	}
	return nil
}

// validateFieldPattern validates field against regex pattern
func validateFieldPattern(providerName string, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return &ConfigError{Driver: providerName, Key: field.Key, Reason: "has an invalid pattern: " + err.Error()}
	}

	if !matched {
		return &ConfigError{Driver: providerName, Key: field.Key, Reason: "does not match required pattern"}
	}

	return nil
}

// validateFieldLength validates field length constraints
func validateFieldLength(providerName string, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return &ConfigError{Driver: providerName, Key: field.Key, Reason: "is too short"}
	}

	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return &ConfigError{Driver: providerName, Key: field.Key, Reason: "is too long"}
	}

	return nil
}
