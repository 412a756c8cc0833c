package cloudapi

import "fmt"

// APIError is a structured error response from the control or data
// plane.
type APIError struct {
	StatusCode int
	Code       string // machine-readable, e.g. "unit_terminated"
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("cloud api error (status %d, request_id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("cloud api error (status %d): %s", e.StatusCode, e.Message)
}

// ErrorCode returns the backend error code for classification.
func (e *APIError) ErrorCode() interface{} {
	return e.Code
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// NetworkError is a transport-level failure: the request never produced
// an HTTP response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Transient marks network failures as retryable.
func (e *NetworkError) Transient() bool {
	return true
}
