package errors

import (
	stdErrors "errors"
	"net/http"
)

// Code classifies a failure for the HTTP layer and for callers deciding whether a
// checkout step is fatal or best-effort.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeCancelled     Code = "OPERATION_CANCELLED"
)

// Metadata is how a code is rendered to clients. Details are echoed only when
// DetailsAllowed is set.
type Metadata struct {
	HTTPStatus     int
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, "validation failed", true},
	CodeUnauthorized:  {http.StatusUnauthorized, "authentication required", false},
	CodeForbidden:     {http.StatusForbidden, "access denied", false},
	CodeNotFound:      {http.StatusNotFound, "resource not found", false},
	CodeConflict:      {http.StatusConflict, "conflict detected", false},
	CodeStateConflict: {http.StatusUnprocessableEntity, "state transition disallowed", true},
	CodeIdempotency:   {http.StatusConflict, "idempotency key reused", true},
	CodeRateLimit:     {http.StatusTooManyRequests, "rate limit exceeded", false},
	CodeInternal:      {http.StatusInternalServerError, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, "dependency unavailable", true},
	CodeCancelled:     {http.StatusInternalServerError, "operation cancelled", false},
}

// MetadataFor treats unknown codes as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Message is the client-safe text; the cause stays in logs.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first coded error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
