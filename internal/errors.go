package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
	ErrorTypeTransport    ErrorType = "TRANSPORT_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeRequiredField    ErrorCode = "REQUIRED_FIELD"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidChoice    ErrorCode = "INVALID_CHOICE"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeNoSession          ErrorCode = "NO_SESSION"
	ErrCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"

	ErrCodeRecordNotFound     ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeOperationInFlight  ErrorCode = "OPERATION_IN_FLIGHT"
	ErrCodeViewClosed         ErrorCode = "VIEW_CLOSED"
	ErrCodeUnsupported        ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodeSuperseded         ErrorCode = "SUPERSEDED"

	ErrCodeRemoteRejected ErrorCode = "REMOTE_REJECTED"
	ErrCodeBadResponse    ErrorCode = "BAD_RESPONSE"
	ErrCodeNetwork        ErrorCode = "NETWORK_ERROR"
)

// LoginPath is where every authorization failure sends the user.
const LoginPath = "/login"

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Redirect   string      `json:"redirect,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldErrors(errs []ValidationError) *AppError {
	return NewValidationError("Validation failed", ErrCodeValidationFailed).
		WithDetails(ValidationErrors{Errors: errs})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorizedError builds the single session-expiry signal. It always
// carries the login redirect.
func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		Redirect:   LoginPath,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewInvariantError reports a caller addressing something the local state
// does not hold. It is a programming error, not a user-facing one.
func NewInvariantError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       ErrCodeInvariantViolation,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewExternalError reports a non-2xx answer from the remote service that is
// not an authorization failure.
func NewExternalError(message string, remoteStatus int) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeRemoteRejected,
		Message:    message,
		Details:    map[string]int{"remote_status": remoteStatus},
		StatusCode: http.StatusBadGateway,
	}
}

func NewTransportError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransport,
		Code:       ErrCodeNetwork,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

var (
	ErrSessionExpired   = NewUnauthorizedError("Session expired, please log in again", ErrCodeSessionExpired)
	ErrNotLoggedIn      = NewUnauthorizedError("You are not logged in", ErrCodeNoSession)
	ErrOperationBusy    = NewConflictError("Operation already in progress", ErrCodeOperationInFlight)
	ErrViewClosed       = NewConflictError("View is no longer active", ErrCodeViewClosed)
	ErrSuperseded       = NewConflictError("A newer request replaced this one", ErrCodeSuperseded)
	ErrPermissionDenied = NewForbiddenError("You do not have permission to perform this action", ErrCodePermissionDenied)
)

// AsAppError unwraps err looking for an AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is the session-expiry signal.
func IsUnauthorized(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == ErrorTypeUnauthorized
}

// HasType reports whether err is an AppError of the given type.
func HasType(err error, t ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == t
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     ErrorType   `json:"type"`
		Code     ErrorCode   `json:"code"`
		Message  string      `json:"message"`
		Details  interface{} `json:"details,omitempty"`
		Redirect string      `json:"redirect,omitempty"`
	}{
		Type:     e.Type,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Redirect: e.Redirect,
	})
}
