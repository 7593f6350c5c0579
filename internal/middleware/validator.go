package middleware

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var brandIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateScanID validates scan ID format (uuid)
func ValidateScanID(scanID string) error {
	if scanID == "" {
		return fmt.Errorf("scan ID cannot be empty")
	}
	if _, err := uuid.Parse(scanID); err != nil {
		return fmt.Errorf("invalid scan ID format")
	}
	return nil
}

// ValidateBrandID validates brand ID format
func ValidateBrandID(brandID string) error {
	if brandID == "" {
		return fmt.Errorf("brand_id is required")
	}
	if !brandIDPattern.MatchString(brandID) {
		return fmt.Errorf("invalid brand_id format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
