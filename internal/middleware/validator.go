package middleware

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Input validation and sanitization utilities for multipart uploads.

// ValidatePolicyFilename checks the HR policy upload is named like a PDF.
func ValidatePolicyFilename(name string) error {
	return validateExtension("hr_policy", name, ".pdf")
}

// ValidateArchiveFilename checks the invoice archive upload is named like a ZIP.
func ValidateArchiveFilename(name string) error {
	return validateExtension("invoices_zip", name, ".zip")
}

func validateExtension(field, name, ext string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s filename cannot be empty", field)
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		return fmt.Errorf("%s must be a %s file, got %q", field, ext, filepath.Base(name))
	}
	return nil
}

// SanitizeFilename strips null bytes and control characters from an uploaded
// filename before it is echoed into logs or error messages.
func SanitizeFilename(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(filepath.Base(result.String()))
}
