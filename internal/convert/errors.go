package convert

import (
	"errors"
	"fmt"

	"github.com/pavel-fokin/file-converter/internal/format"
)

// Kind is the machine-readable class of a conversion failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindUnsupported Kind = "unsupported_conversion"
	KindBackend     Kind = "backend_execution"
	KindTooLarge    Kind = "too_large"
	KindInternal    Kind = "internal"
)

// Sentinels for errors.Is matching.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported conversion")
	ErrBackend     = errors.New("backend execution failed")
	ErrTooLarge    = errors.New("file too large")
)

type (
	// ValidationError reports a missing or malformed request field.
	ValidationError struct {
		Field   string
		Message string
	}

	// NotFoundError reports an artifact that does not exist, possibly because
	// it was swept.
	NotFoundError struct {
		Name string
	}

	// UnsupportedConversionError reports a pair no backend claims.
	UnsupportedConversionError struct {
		Source format.Format
		Target format.Format
	}

	// BackendExecutionError wraps the failure of an external tool or library.
	BackendExecutionError struct {
		Backend string
		Source  format.Format
		Target  format.Format
		Err     error
	}
)

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", e.Name)
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("conversion from %q to %q is not supported", e.Source, e.Target)
}

func (e *BackendExecutionError) Error() string {
	if e.Source != "" || e.Target != "" {
		return fmt.Sprintf("%s backend failed converting %s to %s: %v", e.Backend, e.Source, e.Target, e.Err)
	}
	return fmt.Sprintf("%s backend failed: %v", e.Backend, e.Err)
}

func (e *BackendExecutionError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool            { return target == ErrValidation }
func (e *NotFoundError) Is(target error) bool              { return target == ErrNotFound }
func (e *UnsupportedConversionError) Is(target error) bool { return target == ErrUnsupported }
func (e *BackendExecutionError) Is(target error) bool      { return target == ErrBackend }

// NewBackendError tags err as a failure of the named backend.
func NewBackendError(backend string, err error) error {
	return &BackendExecutionError{Backend: backend, Err: err}
}

// KindOf classifies err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBackend):
		return KindBackend
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrTooLarge):
		return KindTooLarge
	default:
		return KindInternal
	}
}
