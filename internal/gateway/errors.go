package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTimeout matches any NetworkError caused by the request timeout expiring
var ErrTimeout = errors.New("request timed out")

// ErrNoQueuePosition is returned when a queue-position response carries no number
var ErrNoQueuePosition = errors.New("queue position missing from response")

// NetworkError is returned when the backend could not be reached or the
// response could not be read. Timeouts are network errors with Timeout set.
type NetworkError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrTimeout, e.Err)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports ErrTimeout for timed out requests
func (e *NetworkError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}

// HTTPError is returned for any non-2xx response.
// Message holds the backend's "message" field when the body carried one.
type HTTPError struct {
	Op      string
	Status  int
	Body    string
	Message string
}

func (e *HTTPError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	if detail == "" {
		detail = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, detail)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTPError
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

func newHTTPError(op string, status int, body []byte) *HTTPError {
	httpErr := &HTTPError{
		Op:     op,
		Status: status,
		Body:   string(body),
	}

	var payload struct {
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		httpErr.Message = payload.Message
	}
	return httpErr
}
