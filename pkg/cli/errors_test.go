package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/darwin/pkg/genome"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "server.listen_address",
		Message: "missing required field",
	}

	expected := "config error in server.listen_address: missing required field"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if got := NewConfigError("", "bad file").Error(); got != "config error: bad file" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("evolve", underlyingErr)

	if err.Error() != "command evolve failed: underlying error" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("store.backend", "unknown"), ExitConfig},
		{"validation", genome.NewValidationError("pk", "required"), ExitValidation},
		{"not found wrapped", NewCommandError("chat", genome.NewNotFound("pointer", "LINEAGE#x", "")), ExitNotFound},
		{"parse", fmt.Errorf("critic: %w", &genome.ParseError{Stage: "critic"}), ExitGateway},
		{"throttled", genome.ErrThrottled, ExitGateway},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("%s: ExitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}
