// Package errors defines the coded error type shared by the ranking, store
// and evaluation packages, and its JSON rendering for the HTTP API.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// Client errors (4xx).
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInvalidRequest = "INVALID_REQUEST"

	// Server errors (5xx).
	CodeInternal     = "INTERNAL_ERROR"
	CodeStorageError = "STORAGE_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
)

// AppError carries a code, a client-safe message and an optional cause.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the code to a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError without a cause.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError around err.
func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ValidationError reports input that fails a precondition.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// ValidationErrorf is ValidationError with a formatted message.
func ValidationErrorf(format string, args ...any) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// MalformedError reports input that could not be decoded at all.
func MalformedError(what string, err error) *AppError {
	return Wrap(CodeValidation, "malformed "+what, err)
}

// NotFoundError reports a missing query, run, qrels set or file.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// FileNotFoundError wraps an open failure for path.
func FileNotFoundError(path string, err error) *AppError {
	return Wrap(CodeNotFound, fmt.Sprintf("file %s not found", path), err)
}

// InternalError reports an unexpected failure.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// StorageError reports a persistence backend failure.
func StorageError(message string, err error) *AppError {
	return Wrap(CodeStorageError, message, err)
}

// UnavailableError reports a dependency that cannot be reached or is not
// configured. err may be nil.
func UnavailableError(message string, err error) *AppError {
	return Wrap(CodeUnavailable, message, err)
}

// InvalidRequestError reports a request body that cannot be parsed.
func InvalidRequestError(message string) *AppError {
	return New(CodeInvalidRequest, message)
}

// RateLimitedError includes the retry delay as a detail when positive.
func RateLimitedError(retryAfterSeconds int) *AppError {
	err := New(CodeRateLimited, "rate limit exceeded")
	if retryAfterSeconds > 0 {
		err = err.WithDetail("retry_after", fmt.Sprintf("%d", retryAfterSeconds))
	}
	return err
}

// hasCode reports whether any AppError in err's chain carries code.
func hasCode(err error, code string) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsUnavailable checks if error is a service unavailable error.
func IsUnavailable(err error) bool {
	return hasCode(err, CodeUnavailable)
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// CodeInternal for any other non-nil error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes resp with the given status.
func WriteJSON(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteError renders err. AppErrors keep their code and message; details
// are dropped for 5xx. Anything else becomes a generic internal error so
// causes never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal server error",
			Code:    CodeInternal,
			Message: "An unexpected error occurred",
		})
		return
	}

	status := appErr.HTTPStatus()
	resp := ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Message: appErr.Message,
	}
	if status < http.StatusInternalServerError {
		resp.Details = appErr.Details
	}
	WriteJSON(w, status, resp)
}
