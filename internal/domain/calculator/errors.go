package calculator

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDescriptor = errors.New("malformed calculator descriptor")
	ErrDuplicateID         = errors.New("calculator id already registered")
	ErrRegistryClosed      = errors.New("calculator registry is sealed")
	ErrNotFound            = errors.New("calculator not found")
	ErrValidation          = errors.New("calculator input validation failed")
	ErrComputeFailure      = errors.New("calculator computation failed")
	ErrTimeout             = errors.New("calculator computation timed out")
	ErrMalformedOutput     = errors.New("calculator returned malformed output")
)

// ErrorKind is the caller-facing classification carried by a failed Result.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindNotFound       ErrorKind = "NotFound"
	KindValidation     ErrorKind = "ValidationError"
	KindComputeFailure ErrorKind = "ComputeFailure"
)

// Reason explains why a single input field was rejected.
type Reason string

const (
	ReasonMissing       Reason = "MISSING"
	ReasonTypeMismatch  Reason = "TYPE_MISMATCH"
	ReasonOutOfRange    Reason = "OUT_OF_RANGE"
	ReasonInvalidOption Reason = "INVALID_OPTION"
	ReasonInvalidFormat Reason = "INVALID_FORMAT"
)

// Cause narrows a ComputeFailure down to what went wrong inside the boundary.
type Cause string

const (
	CauseError           Cause = "Error"
	CausePanic           Cause = "Panic"
	CauseTimeout         Cause = "Timeout"
	CauseMalformedOutput Cause = "MalformedOutput"
)

// DescriptorError reports why a descriptor was refused at registration.
type DescriptorError struct {
	ID     string
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedDescriptor, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", ErrMalformedDescriptor, e.ID, e.Reason)
}

func (e *DescriptorError) Unwrap() error { return ErrMalformedDescriptor }

// ValidationError pins an input rejection to one declared field.
type ValidationError struct {
	Field  string
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: field %q: %s", ErrValidation, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s (%s)", ErrValidation, e.Field, e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ComputeError wraps whatever escaped a calculator's compute function.
type ComputeError struct {
	ID    string
	Cause Cause
	Err   error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %v", ErrComputeFailure, e.ID, e.Cause, e.Err)
}

// Unwrap exposes both the failure kind and the underlying error to errors.Is.
func (e *ComputeError) Unwrap() []error {
	return []error{ErrComputeFailure, e.Err}
}

// KindOf maps an error returned by the registry or dispatcher to its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrComputeFailure):
		// A compute error may wrap anything its calculator returned; only the
		// outer classification counts.
		return KindComputeFailure
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindComputeFailure
	}
}

func errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
