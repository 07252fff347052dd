package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits (in bytes)
const (
	MaxJSONSize       = 1 * 1024 * 1024 // 1MB - maximum request body
	DefaultSourceSize = 64 * 1024       // 64KB - learner source text
)

// String length limits
const (
	MaxIDLength = 128
)

// ErrSourceTooLarge is returned when learner source exceeds the limit
var ErrSourceTooLarge = errors.New("source too large")

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateSource checks learner source text. Empty source is allowed;
// oversize source wraps ErrSourceTooLarge.
func ValidateSource(source string, maxBytes int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultSourceSize
	}
	if len(source) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d bytes", ErrSourceTooLarge, len(source), maxBytes)
	}
	if !utf8.ValidString(source) {
		return errors.New("source is not valid UTF-8")
	}
	if strings.Contains(source, "\x00") {
		return errors.New("source contains invalid characters")
	}
	return nil
}
