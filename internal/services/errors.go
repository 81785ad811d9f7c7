package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
	ErrPermanent     = errors.New("permanent failure")
	ErrStaleClaim    = errors.New("stale claim")
	ErrUnknownSignal = errors.New("unknown signal")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// Invalid is shorthand for Wrap(ErrInvalidInput, ...) without a cause.
func Invalid(component, operation, message string) error {
	return Wrap(ErrInvalidInput, component, operation, message, nil)
}

// IsRetryable reports whether a worker-reported failure may be retried.
// Stale claims count as transient; anything marked permanent or invalid does not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrPermanent), errors.Is(err, ErrInvalidInput):
		return false
	default:
		return true
	}
}

// Kind returns a short classification label used in logs and task records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStaleClaim):
		return "stale_claim"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrUnknownSignal):
		return "unknown_signal"
	default:
		return "transient"
	}
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
