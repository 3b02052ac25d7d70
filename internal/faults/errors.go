package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
	ErrMalformed     = errors.New("malformed data")
	ErrTimeout       = errors.New("timeout")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrExternalTool  = errors.New("external tool error")
)

// Class names the taxonomy bucket of an error.
type Class string

const (
	ClassNone          Class = ""
	ClassConfiguration Class = "configuration"
	ClassTransient     Class = "transient"
	ClassMalformed     Class = "malformed"
	ClassTimeout       Class = "timeout"
	ClassOther         Class = "other"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
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

// Configuration is shorthand for Wrap(ErrConfiguration, ...).
func Configuration(component, message string, err error) error {
	return Wrap(ErrConfiguration, component, "", message, err)
}

// Classify maps err to its taxonomy bucket.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return ClassConfiguration
	case errors.Is(err, ErrMalformed):
		return ClassMalformed
	case errors.Is(err, ErrTimeout):
		return ClassTimeout
	case errors.Is(err, ErrTransient):
		return ClassTransient
	default:
		return ClassOther
	}
}

// IsFatal reports whether err must abort startup.
func IsFatal(err error) bool {
	return Classify(err) == ClassConfiguration
}

// ExitCode maps an error returned from the CLI to a process exit status.
func ExitCode(err error) int {
	switch Classify(err) {
	case ClassNone:
		return 0
	case ClassConfiguration:
		return 2
	default:
		return 1
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
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
