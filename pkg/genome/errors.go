package genome

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy. Use errors.Is to classify.
var (
	// ErrNotFound indicates a missing pointer, genome, challenger or chat.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a genome missing required sections or fields,
	// or an invalid request.
	ErrValidation = errors.New("validation failed")

	// ErrThrottled indicates the inference gateway kept throttling after
	// all backoff attempts were spent.
	ErrThrottled = errors.New("gateway throttled")

	// ErrGateway indicates a non-retryable inference gateway failure.
	ErrGateway = errors.New("gateway error")

	// ErrParse indicates model output that does not match the expected shape.
	ErrParse = errors.New("unparsable model output")

	// ErrAuditUnavailable indicates a safety or compliance audit that could
	// not produce a judgement. Callers treat it as a failed check.
	ErrAuditUnavailable = errors.New("audit unavailable")
)

// NotFoundError reports an entity missing from a lineage partition.
type NotFoundError struct {
	// Entity names what was looked up (pointer, genome, chat, challenger).
	Entity string

	// Partition is the lineage identifier.
	Partition string

	// SortKey is the key that missed.
	SortKey string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.SortKey == "" {
		return fmt.Sprintf("%s not found in lineage %q", e.Entity, e.Partition)
	}
	return fmt.Sprintf("%s not found: %s/%s", e.Entity, e.Partition, e.SortKey)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	// Field is the dotted path of the offending field (e.g. "config.model_id").
	Field string

	// Message describes what is wrong.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ParseError reports model output that could not be decoded.
type ParseError struct {
	// Stage is the pipeline stage that requested the output.
	Stage string

	// Raw is the model output that failed to parse.
	Raw string

	// Cause is the underlying decoding error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: unparsable model output", e.Stage)
	}
	return fmt.Sprintf("%s: unparsable model output: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewNotFound creates a NotFoundError.
func NewNotFound(entity, partition, sortKey string) *NotFoundError {
	return &NotFoundError{Entity: entity, Partition: partition, SortKey: sortKey}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
