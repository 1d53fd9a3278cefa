package errors

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

const (
	MetadataSeparator = ", "
	MetadataPrefix    = "metadata={"
	MetadataSuffix    = "}"
	CausePrefix       = "cause="
)

// Status carries the classification of an error: the failure kind, an
// HTTP-ish status code, a human-readable message and optional metadata.
type Status struct {
	Kind     Kind              `json:"kind,omitempty"`
	Code     int               `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error is a structured error containing a failure kind, status code,
// message, metadata and an optional wrapped cause.
type Error struct {
	Status
	cause error
}

// Error returns a human-readable error message with the optional cause chain.
func (e *Error) Error() string {
	var msg strings.Builder

	msg.WriteString("kind=")
	msg.WriteString(e.Kind.String())
	msg.WriteString(MetadataSeparator)
	msg.WriteString("code=")
	msg.WriteString(strconv.Itoa(e.Code))
	msg.WriteString(MetadataSeparator)
	msg.WriteString("message=")
	msg.WriteString(e.Message)

	if len(e.Metadata) > 0 {
		msg.WriteString(MetadataSeparator)
		msg.WriteString(MetadataPrefix)
		first := true
		for k, v := range e.Metadata {
			if !first {
				msg.WriteString(", ")
			}
			msg.WriteString(k)
			msg.WriteByte('=')
			msg.WriteString(v)
			first = false
		}
		msg.WriteString(MetadataSuffix)
	}

	if e.cause != nil {
		msg.WriteString(MetadataSeparator)
		msg.WriteString(CausePrefix)
		msg.WriteString(e.cause.Error())
	}

	return msg.String()
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithMetadata adds metadata to the error. Returns a new error instance to maintain immutability.
func (e *Error) WithMetadata(m map[string]string) *Error {
	if len(m) == 0 {
		return e
	}

	err := e.clone()
	if err.Metadata == nil {
		err.Metadata = make(map[string]string, len(m))
	}

	maps.Copy(err.Metadata, m)
	return err
}

// WithCause adds a cause to the error. Returns a new error instance to maintain immutability.
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}

	err := e.clone()
	err.cause = cause
	return err
}

// WithCode overrides the status code. Returns a new error instance.
func (e *Error) WithCode(code int) *Error {
	err := e.clone()
	err.Code = code
	return err
}

// clone creates a shallow copy of the error while deep copying the metadata map.
func (e *Error) clone() *Error {
	var metadata map[string]string
	if len(e.Metadata) > 0 {
		metadata = make(map[string]string, len(e.Metadata))
		maps.Copy(metadata, e.Metadata)
	}

	return &Error{
		Status: Status{
			Kind:     e.Kind,
			Code:     e.Code,
			Message:  e.Message,
			Metadata: metadata,
		},
		cause: e.cause,
	}
}

// Is reports whether err is an *Error with the same kind. Comparing by
// kind alone lets callers match sentinel errors regardless of the
// message a specific failure carried.
func (e *Error) Is(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return e.Kind == se.Kind
	}
	return false
}

// GetKind returns the failure kind.
func (e *Error) GetKind() Kind {
	return e.Kind
}

// GetCode returns the status code.
func (e *Error) GetCode() int {
	return e.Code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.Message
}

// GetMetadata returns a copy of the metadata to prevent external modification.
func (e *Error) GetMetadata() map[string]string {
	if len(e.Metadata) == 0 {
		return nil
	}

	result := make(map[string]string, len(e.Metadata))
	maps.Copy(result, e.Metadata)
	return result
}

// GetCause returns the underlying cause of the error.
func (e *Error) GetCause() error {
	return e.cause
}

// New creates a new error with the given kind and formatted message.
// The status code defaults to the kind's canonical code.
func New(kind Kind, format string, args ...any) *Error {
	var message string
	if len(args) == 0 {
		message = format
	} else {
		message = fmt.Sprintf(format, args...)
	}

	return &Error{
		Status: Status{
			Kind:    kind,
			Code:    kind.Code(),
			Message: message,
		},
	}
}

// NewWithMetadata creates a new error with metadata.
func NewWithMetadata(kind Kind, metadata map[string]string, format string, args ...any) *Error {
	err := New(kind, format, args...)
	if len(metadata) > 0 {
		err.Metadata = make(map[string]string, len(metadata))
		maps.Copy(err.Metadata, metadata)
	}
	return err
}

// FromError converts a generic error to *Error. Unknown errors are
// classified as KindInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	if se, ok := err.(*Error); ok {
		return se
	}

	return New(KindInternal, "%v", err)
}

// KindOf returns the kind of err, or KindInternal for non-*Error values.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Wrap wraps an error with additional context while preserving the original error chain.
// Returns nil if the input error is nil.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	if err == nil {
		return nil
	}

	newErr := New(kind, format, args...)
	return newErr.WithCause(err)
}

// WrapWithMetadata wraps an error with metadata and additional context.
// Returns nil if the input error is nil.
func WrapWithMetadata(err error, kind Kind, metadata map[string]string, format string, args ...any) *Error {
	if err == nil {
		return nil
	}

	newErr := NewWithMetadata(kind, metadata, format, args...)
	return newErr.WithCause(err)
}
