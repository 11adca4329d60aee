package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks input errors: missing book data, a malformed
	// address, or an operation attempted from an invalid order state.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrGeneration marks document composition failures.
	ErrGeneration = errors.New("generation error")
	// ErrStorage marks artifact persistence failures.
	ErrStorage = errors.New("storage error")
	// ErrVendor marks permanent vendor rejections (4xx with detail).
	ErrVendor = errors.New("vendor error")
	// ErrTransient marks failures worth retrying: timeouts, 429s, 5xx.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound marks missing records.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error should be retried under the shared
// backoff policy. Only transient failures qualify; vendor rejections and
// validation errors are permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
