package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	ErrSequence      = errors.New("sequencing violation")
	ErrMissingField  = errors.New("field missing from record")
	ErrMissingID     = errors.New("record has no id")
	ErrNotRefactored = fmt.Errorf("%w: technique not refactored for field", ErrSequence)
	ErrUnsupported   = errors.New("operation not supported")
	ErrSealed        = errors.New("content is sealed")
)

// ConfigurationError reports an invalid analyzer configuration. It is always
// detected before any source or backend I/O.
type ConfigurationError struct {
	Field    string
	Pipeline string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Field != "" && e.Pipeline != "":
		return fmt.Sprintf("invalid configuration: field %q pipeline %q: %s", e.Field, e.Pipeline, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("invalid configuration: field %q: %s", e.Field, e.Reason)
	default:
		return "invalid configuration: " + e.Reason
	}
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfig }

// RecordError reports a problem with a single raw record. Missing non-id
// fields are recovered by the analyzer; id problems follow the id policy.
type RecordError struct {
	Index int
	ID    string
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record %d (id %q): field %q: %v", e.Index, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d (id %q): %v", e.Index, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// TechniqueError reports an unrecoverable failure inside a preprocessor or
// production technique. Recoverable lookups never surface as errors.
type TechniqueError struct {
	Technique string
	Field     string
	Err       error
}

func (e *TechniqueError) Error() string {
	return fmt.Sprintf("technique %s on field %q: %v", e.Technique, e.Field, e.Err)
}

func (e *TechniqueError) Unwrap() error { return e.Err }

// InterfaceError reports a writer session sequencing violation or a backend
// failure.
type InterfaceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *InterfaceError) Error() string {
	return fmt.Sprintf("writer %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *InterfaceError) Unwrap() error { return e.Err }

// Sequence builds an InterfaceError for an operation invoked in the wrong state.
func Sequence(backend, op, detail string) error {
	return &InterfaceError{Backend: backend, Op: op, Err: fmt.Errorf("%w: %s", ErrSequence, detail)}
}
