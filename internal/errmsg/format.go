// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Preview pipeline
	OpImageDecode Op = "decode image"
	OpImageRender Op = "render image"
	OpImageStat   Op = "read image"

	// Configuration
	OpConfigLoad   Op = "load configuration"
	OpConfigReload Op = "reload configuration"
	OpConfigWrite  Op = "write default configuration"

	// Export
	OpASCIISave Op = "save ASCII art"

	// Persistence
	OpStateLoad Op = "open navigation state"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
