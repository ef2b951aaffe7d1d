package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError indicates malformed question input. It is recovered into
// a user-facing message at the boundary, never a process failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// NewValidationError creates a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateQuestion checks a single question before any pipeline stage runs.
// Length is measured in runes, matching user-perceived characters.
func ValidateQuestion(question string, maxLen int) error {
	if strings.TrimSpace(question) == "" {
		return NewValidationError("question cannot be empty or whitespace")
	}
	if n := utf8.RuneCountInString(question); maxLen > 0 && n > maxLen {
		return NewValidationError("question exceeds %d characters (got %d)", maxLen, n)
	}
	return nil
}
