package module

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration failures.
var (
	// ErrMissingRequiredProperty indicates a required property is unset.
	ErrMissingRequiredProperty = errors.New("required property not set")

	// ErrMissingTarget indicates a module with targets has none selected.
	ErrMissingTarget = errors.New("target not selected")

	// ErrMissingPayload indicates the selected target requires a payload.
	ErrMissingPayload = errors.New("payload required")

	// ErrIncompatiblePayload indicates the payload is not allowed for the target.
	ErrIncompatiblePayload = errors.New("payload not compatible with target")

	// ErrUnknownProperty indicates no entity declares the property.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrInvalidValue indicates a value could not be coerced.
	ErrInvalidValue = errors.New("invalid value")

	// ErrTargetOutOfRange indicates a target index outside the target list.
	ErrTargetOutOfRange = errors.New("target index out of range")

	// ErrNotCloneable indicates an entity that was not built by a Registry.
	ErrNotCloneable = errors.New("entity has no factory")

	// ErrNotRunnable indicates the module has no Run method.
	ErrNotRunnable = errors.New("module is not runnable")
)

// Sentinel errors for validation failures.
var (
	// ErrFileNotFound indicates a file-must-exist property points nowhere.
	ErrFileNotFound = errors.New("file not found")

	// ErrDirectoryRequired indicates a directory is absent and was not created.
	ErrDirectoryRequired = errors.New("directory required")
)

// Error codes used by the CLI suggestion system.
const (
	errorCodeConfiguration = "CONFIGURATION_ERROR"
	errorCodeValidation    = "VALIDATION_ERROR"
	errorCodeExecution     = "EXECUTION_FAILURE"
)

// ConfigurationError reports a missing or invalid property, or an
// incompatible target/payload pairing.
type ConfigurationError struct {
	Property string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Property == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Property, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Code implements the CLI error-code contract.
func (e *ConfigurationError) Code() string { return errorCodeConfiguration }

// ValidationError reports a filesystem constraint that does not hold.
type ValidationError struct {
	Property string
	Path     string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Property, e.Err, e.Path)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Code implements the CLI error-code contract.
func (e *ValidationError) Code() string { return errorCodeValidation }

func missing(property string) error {
	return &ConfigurationError{Property: property, Err: ErrMissingRequiredProperty}
}

// ErrorCode resolves an error into a CLI error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}
	return errorCodeExecution
}

// ExitCode maps module errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ErrorCode(err) {
	case errorCodeConfiguration, errorCodeValidation:
		return 2
	default:
		return 1
	}
}

// Suggestions provides CLI hints for module errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrMissingTarget), errors.Is(err, ErrTargetOutOfRange):
		return []string{
			"List targets:               show targets",
			"Select one:                 set target <index>",
		}
	case errors.Is(err, ErrMissingPayload), errors.Is(err, ErrIncompatiblePayload):
		return []string{
			"List compatible payloads:   show payloads",
			"Select one:                 set payload <path>",
		}
	case errors.Is(err, ErrMissingRequiredProperty), errors.Is(err, ErrInvalidValue):
		return []string{
			"Review properties:          show options",
		}
	case errors.Is(err, ErrFileNotFound):
		return []string{
			"Point the property at an existing file",
		}
	case errors.Is(err, ErrDirectoryRequired):
		return []string{
			"Create the directory or answer yes when asked",
		}
	}
	return nil
}
