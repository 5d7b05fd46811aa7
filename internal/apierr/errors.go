// Package apierr defines the stable error-code vocabulary shared by the
// sandbox service, the Kubernetes workload provider and the HTTP API.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the stable identifiers from the error table.
type Code string

const (
	InvalidEntrypoint     Code = "INVALID_ENTRYPOINT"
	InvalidMetadataLabel  Code = "INVALID_METADATA_LABEL"
	InvalidPort           Code = "INVALID_PORT"
	InvalidExpiration     Code = "INVALID_EXPIRATION"
	InvalidArgument       Code = "INVALID_ARGUMENT"
	NotFound              Code = "NOT_FOUND"
	UnsupportedOperation  Code = "UNSUPPORTED_OPERATION"
	CreateFailed          Code = "CREATE_FAILED"
	K8sInitializationErr  Code = "K8S_INITIALIZATION_ERROR"
	SandboxAPIException   Code = "SANDBOX_API_EXCEPTION"
	Unauthorized          Code = "UNAUTHORIZED"
)

var statusByCode = map[Code]int{
	InvalidEntrypoint:    http.StatusBadRequest,
	InvalidMetadataLabel: http.StatusBadRequest,
	InvalidPort:          http.StatusBadRequest,
	InvalidExpiration:    http.StatusBadRequest,
	InvalidArgument:      http.StatusBadRequest,
	NotFound:             http.StatusNotFound,
	UnsupportedOperation: http.StatusConflict,
	CreateFailed:         http.StatusUnprocessableEntity,
	K8sInitializationErr: http.StatusServiceUnavailable,
	Unauthorized:         http.StatusUnauthorized,
}

// Error is a typed, wrapped error carrying a stable Code and the HTTP
// status it should be rendered as.
type Error struct {
	code    Code
	message string
	err     error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{code: code, message: message, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.message }

// Status returns the HTTP status code for this error, defaulting to 500
// for codes without a table entry (SandboxAPIException, and any code
// decoded from a response that is not in the table above).
func (e *Error) Status() int {
	if s, ok := statusByCode[e.code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// As extracts an *Error from err, returning ok=false if err does not
// wrap one.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
