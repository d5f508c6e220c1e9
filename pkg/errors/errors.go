// Package errors carries the typed error vocabulary shared by the catalog
// services and the HTTP layer. A Code decides the response status; the
// message and details travel with the error value.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeTransfer      Code = "TRANSFER_ERROR"
)

// Metadata is the HTTP contract of a code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// EchoMessage lets the error's own message replace PublicMessage in
	// responses. Codes that may wrap infrastructure text keep it off.
	EchoMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true, true},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false, true},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false, true},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true, true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true, false},
	CodeTransfer:      {http.StatusBadGateway, true, "media transfer failed", true, true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// PublicMessage is the text a client sees for e.
func PublicMessage(e *Error) string {
	meta := MetadataFor(e.Code())
	if meta.EchoMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
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

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

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

// WithDetails attaches structured details (field errors, ids) in place.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf returns the code of the first typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the provided code anywhere in its chain.
func Is(err error, code Code) bool {
	for typed := As(err); typed != nil; typed = As(typed.cause) {
		if typed.code == code {
			return true
		}
	}
	return false
}

func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
