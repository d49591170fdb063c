package tasklist

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned when tasklist.exe cannot exist on the
// current operating system.
var ErrUnsupportedPlatform = errors.New("tasklist: windows only")

// ErrStreamConsumed is yielded when a Stream is iterated a second time.
var ErrStreamConsumed = errors.New("tasklist: stream already consumed")

// ConfigCode identifies which option constraint was violated.
type ConfigCode string

// Config error codes.
const (
	CodeVerboseConflict          ConfigCode = "VERBOSE_CONFLICT"
	CodeModulesServicesConflict  ConfigCode = "MODULES_SERVICES_CONFLICT"
	CodeIncompleteRemote         ConfigCode = "INCOMPLETE_REMOTE"
	CodeRemoteFilterNotSupported ConfigCode = "REMOTE_FILTER_NOT_SUPPORTED"
)

// ConfigError reports an invalid Options combination. It is always returned
// before any process is spawned.
type ConfigError struct {
	Code    ConfigCode
	Message string
}

func (e *ConfigError) Error() string {
	if e.Code == "" {
		return "tasklist: invalid configuration"
	}
	if e.Message == "" {
		return fmt.Sprintf("tasklist: %s", e.Code)
	}
	return fmt.Sprintf("tasklist: %s: %s", e.Code, e.Message)
}

// Is matches targets that are *ConfigError with the same code, or with an
// empty code (ErrInvalidConfig matches every ConfigError).
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidConfig            = &ConfigError{}
	ErrVerboseConflict          = &ConfigError{Code: CodeVerboseConflict}
	ErrModulesServicesConflict  = &ConfigError{Code: CodeModulesServicesConflict}
	ErrIncompleteRemote         = &ConfigError{Code: CodeIncompleteRemote}
	ErrRemoteFilterNotSupported = &ConfigError{Code: CodeRemoteFilterNotSupported}
)

func newConfigError(code ConfigCode, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// LaunchError is returned when the executable could not be started.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("tasklist: launch %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when the output does not match the expected
// CSV layout for the selected schema.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tasklist: parse line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
