package errors

import (
	"errors"
	"fmt"
	"time"
)

// FormError represents a failure while mapping, filling or serving a form, with enough
// context to report it back to the caller
type FormError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Context   string    `json:"context,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// ErrorType represents the categories of form errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeUnknownField
	ErrorTypeDuplicateMapping
	ErrorTypeFillInvocationFailed
	ErrorTypeFillTimeout
	ErrorTypeMalformedRequest
	ErrorTypeTemplateReadFailed
)

// Error implements the error interface
func (e *FormError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Message, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *FormError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a FormError of the same type, so that
// errors.Is(err, &FormError{Type: ErrorTypeUnknownField}) matches any unknown field error
func (e *FormError) Is(target error) bool {
	t, ok := target.(*FormError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknownField:
		return "UNKNOWN_FIELD"
	case ErrorTypeDuplicateMapping:
		return "DUPLICATE_MAPPING"
	case ErrorTypeFillInvocationFailed:
		return "FILL_INVOCATION_FAILED"
	case ErrorTypeFillTimeout:
		return "FILL_TIMEOUT"
	case ErrorTypeMalformedRequest:
		return "MALFORMED_REQUEST"
	case ErrorTypeTemplateReadFailed:
		return "TEMPLATE_READ_FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsFatal reports whether an error of this type must stop the process from serving
func (et ErrorType) IsFatal() bool {
	switch et {
	case ErrorTypeDuplicateMapping, ErrorTypeTemplateReadFailed:
		return true
	default:
		return false
	}
}

// NewFormError creates a new FormError
func NewFormError(errorType ErrorType, message string) *FormError {
	return &FormError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError wraps a standard error as a FormError
func WrapError(errorType ErrorType, err error) *FormError {
	return &FormError{
		Type:      errorType,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Err:       err,
	}
}

// WithContext adds context to an existing FormError
func (e *FormError) WithContext(context string) *FormError {
	e.Context = context
	return e
}

// WithField records the offending field name
func (e *FormError) WithField(field string) *FormError {
	e.Field = field
	return e
}

// WithFile adds file path information to an existing FormError
func (e *FormError) WithFile(filePath string) *FormError {
	e.FilePath = filePath
	return e
}

// UnknownField reports a fill key that has no record in the mapping table
func UnknownField(apiName string) *FormError {
	return NewFormError(ErrorTypeUnknownField, fmt.Sprintf("unknown field %q", apiName)).WithField(apiName)
}

// DuplicateMapping reports two records normalizing to the same api name
func DuplicateMapping(apiName, first, second string) *FormError {
	return NewFormError(ErrorTypeDuplicateMapping,
		fmt.Sprintf("api name %q is produced by both %q and %q", apiName, first, second)).WithField(apiName)
}

// FillFailed reports a failed fill invocation, keeping the tool's diagnostic output as context
func FillFailed(err error, diagnostic string) *FormError {
	return WrapError(ErrorTypeFillInvocationFailed, err).WithContext(diagnostic)
}

// FillTimeout reports a fill invocation that ran past its bound
func FillTimeout(limit time.Duration, err error) *FormError {
	e := NewFormError(ErrorTypeFillTimeout, fmt.Sprintf("fill did not complete within %s", limit))
	e.Err = err
	return e
}

// MalformedRequest reports a request body that cannot be decoded into fill values
func MalformedRequest(err error) *FormError {
	return WrapError(ErrorTypeMalformedRequest, err)
}

// InvalidValue reports a value the field named by apiName cannot take
func InvalidValue(apiName, reason string, err error) *FormError {
	e := NewFormError(ErrorTypeMalformedRequest, fmt.Sprintf("invalid value for %q: %s", apiName, reason)).WithField(apiName)
	e.Err = err
	return e
}

// TemplateReadFailed reports a template or mapping artifact that cannot be read
func TemplateReadFailed(path string, err error) *FormError {
	return WrapError(ErrorTypeTemplateReadFailed, err).WithFile(path)
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}
