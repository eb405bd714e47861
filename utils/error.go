package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorValidation     = errors.New("validation failed")
	ErrorUnauthorized   = errors.New("unauthorized")

	// ErrDailySummaryMissing means recompute ran before ensure; a caller bug.
	ErrDailySummaryMissing = errors.New("daily summary missing")
)

func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrorValidation, fmt.Sprintf(format, args...))
}

func NewNotFoundError(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrorRecordNotFound)
}

// ErrorMessage drops the sentinel prefix so clients see only the detail.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	prefix := ErrorValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
