package kaonavi

import (
	"errors"
	"fmt"
	"time"
)

// Error types carried by ClientError.Type.
const (
	// ErrorTypeArgument marks a precondition failure detected before any network I/O.
	ErrorTypeArgument = "Argument"
	// ErrorTypeClosed marks a call issued after Close.
	ErrorTypeClosed = "Closed"
	// ErrorTypeHTTP marks a response whose status code is not 2xx.
	ErrorTypeHTTP = "HTTP"
	// ErrorTypeNetwork marks a transport failure that produced no response.
	ErrorTypeNetwork = "Network"
	// ErrorTypeValidation marks an invalid client configuration.
	ErrorTypeValidation = "Validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrClientClosed is returned by every operation after Close.
	ErrClientClosed = errors.New("kaonavi: client closed")

	// ErrUnexpectedStatus is the cause of every ErrorTypeHTTP error.
	ErrUnexpectedStatus = errors.New("kaonavi: response status code does not indicate success")

	// ErrEnvelopeNotFound is returned when a JSON object has no matching array-valued property.
	ErrEnvelopeNotFound = errors.New("kaonavi: no array-valued property found")

	// ErrMissingTaskID is returned when a mutating response carries no task_id.
	ErrMissingTaskID = errors.New("kaonavi: response has no task_id")

	// ErrEmptyTaskProgress is returned when a task status response body is null.
	ErrEmptyTaskProgress = errors.New("kaonavi: empty task progress")
)

// ClientError represents an error from the client
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	Param      string
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Param != "" {
		msg = fmt.Sprintf("%s (parameter %q)", msg, e.Param)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Param != "" {
		info += fmt.Sprintf("Parameter: %s\n", e.Param)
	}
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

func argumentError(param, message string) *ClientError {
	return &ClientError{
		Type:      ErrorTypeArgument,
		Message:   message,
		Param:     param,
		Timestamp: time.Now(),
	}
}

func closedError() *ClientError {
	return &ClientError{
		Type:      ErrorTypeClosed,
		Message:   "client has been closed",
		Cause:     ErrClientClosed,
		Timestamp: time.Now(),
	}
}

// IsArgumentError reports whether err is a precondition failure, and for which parameter.
func IsArgumentError(err error) (string, bool) {
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Type == ErrorTypeArgument {
		return clientErr.Param, true
	}
	return "", false
}

// IsHTTPError reports whether err came from a non-2xx response.
func IsHTTPError(err error) bool {
	return errors.Is(err, &ClientError{Type: ErrorTypeHTTP})
}

// StatusCode returns the HTTP status code carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}
