package cli

import (
	"errors"
	"fmt"

	"mercator-hq/darwin/pkg/genome"
)

// Exit codes of the darwin command.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitConfig     = 2
	ExitValidation = 3
	ExitNotFound   = 4
	ExitGateway    = 5
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, genome.ErrValidation):
		return ExitValidation
	case errors.Is(err, genome.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, genome.ErrGateway), errors.Is(err, genome.ErrThrottled), errors.Is(err, genome.ErrParse):
		return ExitGateway
	default:
		return ExitError
	}
}
