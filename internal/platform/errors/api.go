package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusNetwork marks an APIError for which no HTTP response was received.
const StatusNetwork = -1

// APIError is the caller facing error of every backend call. Status is the
// HTTP status code, or StatusNetwork when the request never got a response.
type APIError struct {
	Status  int
	Method  string
	URL     string
	Message string
	Body    []byte
	Cause   error
}

func NewNetworkError(method, url string, cause error) *APIError {
	return &APIError{
		Status:  StatusNetwork,
		Method:  method,
		URL:     url,
		Message: "no response from server",
		Cause:   cause,
	}
}

func NewStatusError(method, url string, status int, body []byte) *APIError {
	return &APIError{
		Status:  status,
		Method:  method,
		URL:     url,
		Message: http.StatusText(status),
		Body:    body,
	}
}

func (e *APIError) Error() string {
	status := "NETWORK_ERROR"
	if e.Status != StatusNetwork {
		status = fmt.Sprintf("HTTP %d", e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %s: %v", e.Method, e.URL, status, e.Message, e.Cause)
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, status, truncate(string(e.Body), 256))
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsNetwork reports whether no response was received.
func (e *APIError) IsNetwork() bool {
	return e.Status == StatusNetwork
}

// UserMessage returns the message shown to the end user for this failure.
func (e *APIError) UserMessage() string {
	switch e.Status {
	case StatusNetwork:
		return "Could not reach the translation service. Check your connection."
	case http.StatusUnauthorized:
		return "Session expired. Please log in again."
	case http.StatusRequestEntityTooLarge:
		return "The file is too large."
	case http.StatusUnprocessableEntity:
		return "Validation failed. Please check your input."
	case http.StatusBadGateway:
		return "The translation service is currently unavailable."
	default:
		return "An unexpected error occurred."
	}
}

// AsAPIError finds the first APIError in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNetwork reports whether err is an APIError without a response.
func IsNetwork(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.IsNetwork()
}

// IsUpstreamUnavailable reports whether err is an HTTP 502 from the backend.
func IsUpstreamUnavailable(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusBadGateway
}

// StatusOf returns the status carried by err, or 0 if it has none.
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
