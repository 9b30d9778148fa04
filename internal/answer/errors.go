package answer

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrServiceCall is matched (errors.Is) by every failed Call: transport
// failures, timeouts, non-success statuses and malformed responses.
var ErrServiceCall = errors.New("answer service call failed")

// APIError represents a non-success HTTP response from the answer service.
// Callers should prefer the predicate functions to inspect errors rather
// than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

// Is lets errors.Is(err, ErrServiceCall) match an *APIError.
func (e *APIError) Is(target error) bool { return target == ErrServiceCall }

func newAPIError(operation string, statusCode int, message string) *APIError {
	return &APIError{operation: operation, statusCode: statusCode, message: message}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Message returns the response body or status text.
func (e *APIError) Message() string { return e.message }

// Operation returns a short description of the call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsServerError reports whether err is an API error with a 5xx status.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode >= http.StatusInternalServerError
}

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}
