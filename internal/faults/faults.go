package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the failure classes the scrape pipeline distinguishes.
// Callers wrap these with Wrap so errors.Is classification survives context
// added along the way.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrAuth          = errors.New("authentication error")
	ErrTransient     = errors.New("transient failure")
	ErrNotFound      = errors.New("not found")
	ErrUnresolved    = errors.New("unresolved")
	ErrCorruption    = errors.New("cache corruption")
	ErrIO            = errors.New("io error")
)

// Wrap builds an error message that includes component context while tagging
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

// Fatal reports whether err should abort an entire job rather than fail the
// single unit that produced it. Configuration problems are caught before jobs
// start; auth failures cannot succeed on retry for any unit.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuth)
}

// Expected reports whether err represents an expected negative outcome
// (missing media, unresolvable ROM) rather than a fault.
func Expected(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnresolved)
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
		return "failure"
	}
	return strings.Join(parts, ": ")
}
