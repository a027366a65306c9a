package saga

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() support
var (
	ErrTransport  = errors.New("transport failure")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrDecode     = errors.New("decode failure")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// Error codes for saga client errors
const (
	ErrCodeTransport  = "TRANSPORT"
	ErrCodeHTTPStatus = "HTTP_STATUS"
	ErrCodeDecode     = "DECODE"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeValidation = "VALIDATION"
)

// SagaError is the base error type for all client errors.
type SagaError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SagaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SagaError) Unwrap() error {
	return e.Cause
}

// TransportError is returned when a request never produced a response.
type TransportError struct {
	SagaError
	Service string
	URL     string
}

// NewTransportError creates a new TransportError.
func NewTransportError(service, url string, cause error) *TransportError {
	return &TransportError{
		SagaError: SagaError{
			Code:    ErrCodeTransport,
			Message: fmt.Sprintf("%s request to %s failed", service, url),
			Cause:   cause,
		},
		Service: service,
		URL:     url,
	}
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// HTTPStatusError is returned for any non-success status code.
type HTTPStatusError struct {
	SagaError
	Service    string
	URL        string
	StatusCode int
	Detail     string // server-provided `detail`, when present
}

// NewHTTPStatusError creates a new HTTPStatusError.
func NewHTTPStatusError(service, url string, statusCode int, detail string) *HTTPStatusError {
	msg := fmt.Sprintf("%s returned status %d for %s", service, statusCode, url)
	if detail != "" {
		msg += ": " + detail
	}
	return &HTTPStatusError{
		SagaError: SagaError{
			Code:    ErrCodeHTTPStatus,
			Message: msg,
		},
		Service:    service,
		URL:        url,
		StatusCode: statusCode,
		Detail:     detail,
	}
}

func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// DecodeError is returned when a response body is missing or malformed.
type DecodeError struct {
	SagaError
	Service string
	URL     string
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(service, url string, cause error) *DecodeError {
	return &DecodeError{
		SagaError: SagaError{
			Code:    ErrCodeDecode,
			Message: fmt.Sprintf("could not decode %s response from %s", service, url),
			Cause:   cause,
		},
		Service: service,
		URL:     url,
	}
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// NotFoundError is returned when a saga does not exist.
type NotFoundError struct {
	SagaError
	SagaID string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(sagaID string) *NotFoundError {
	return &NotFoundError{
		SagaError: SagaError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("saga '%s' not found", sagaID),
		},
		SagaID: sagaID,
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError is returned when a request fails client-side validation.
type ValidationError struct {
	SagaError
	Field string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		SagaError: SagaError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
		},
		Field: field,
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TruncateError truncates an error message to MaxErrorLength.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	return TruncateMessage(err.Error())
}

// TruncateMessage truncates msg to MaxErrorLength.
func TruncateMessage(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	marker := "... [TRUNCATED]"
	return msg[:MaxErrorLength-len(marker)] + marker
}
