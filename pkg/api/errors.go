package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is implemented by every failure the pipeline can return. Callers
// match concrete variants with errors.As instead of probing shapes.
type Error interface {
	error
	StatusCode() int
}

// NetworkError is a transport-level failure: DNS, connection refused,
// offline. Reported with status code 0.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string   { return fmt.Sprintf("api: network failure: %v", e.Err) }
func (e *NetworkError) Unwrap() error   { return e.Err }
func (e *NetworkError) StatusCode() int { return 0 }

// TimeoutError means the request deadline passed before a response arrived.
// Reported with status code 408. A timeout is not an authentication failure
// and never clears the session on its own.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string   { return fmt.Sprintf("api: request timed out: %v", e.Err) }
func (e *TimeoutError) Unwrap() error   { return e.Err }
func (e *TimeoutError) StatusCode() int { return 408 }

// UnauthorizedError is an HTTP 401. By the time the caller sees it, the
// pipeline has already cleared the persisted session and notified
// unauthorized subscribers.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string   { return "api: unauthorized: " + e.Message }
func (e *UnauthorizedError) StatusCode() int { return 401 }

// ValidationError is an HTTP 422. Fields carries the per-field messages and
// Data preserves the backend's nested validation payload verbatim so the UI
// can render warnings and suggestions without this layer flattening them.
type ValidationError struct {
	Message string
	Fields  map[string][]string
	Data    json.RawMessage
}

func (e *ValidationError) Error() string   { return "api: validation failed: " + e.Message }
func (e *ValidationError) StatusCode() int { return 422 }

// HTTPError is any other non-2xx response.
type HTTPError struct {
	Code    int
	Message string
	Fields  map[string][]string
}

func (e *HTTPError) Error() string   { return fmt.Sprintf("api: http %d: %s", e.Code, e.Message) }
func (e *HTTPError) StatusCode() int { return e.Code }

// StatusCode extracts the normalized status code from a pipeline error.
// Errors from outside the pipeline report -1.
func StatusCode(err error) int {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode()
	}
	return -1
}
