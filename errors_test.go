package kaonavi

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClientError(t *testing.T) {
	// Test error without cause
	err := &ClientError{
		Type:    ErrorTypeNetwork,
		Message: "connection timeout",
	}

	expectedMsg := "Network: connection timeout"
	if err.Error() != expectedMsg {
		t.Errorf("Expected '%s', got '%s'", expectedMsg, err.Error())
	}

	// Test error with cause
	cause := errors.New("underlying error")
	errWithCause := &ClientError{
		Type:    ErrorTypeHTTP,
		Message: "internal server error",
		Cause:   cause,
	}

	expectedMsgWithCause := "HTTP: internal server error (underlying error)"
	if errWithCause.Error() != expectedMsgWithCause {
		t.Errorf("Expected '%s', got '%s'", expectedMsgWithCause, errWithCause.Error())
	}
}

func TestClientErrorWithParamAndRequestID(t *testing.T) {
	err := &ClientError{
		Type:      ErrorTypeArgument,
		Message:   "task id must not be negative",
		Param:     "id",
		RequestID: "req-1",
	}

	expected := `[req-1] Argument: task id must not be negative (parameter "id")`
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestClientErrorNil(t *testing.T) {
	var err *ClientError

	if err.Error() != "<nil>" {
		t.Errorf("Expected '<nil>', got '%s'", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("Expected nil unwrap on nil receiver")
	}
	if err.Is(&ClientError{Type: ErrorTypeHTTP}) {
		t.Error("Expected nil receiver to match nothing")
	}
	if err.DebugInfo() != "Error: <nil>" {
		t.Errorf("Unexpected debug info: %s", err.DebugInfo())
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("original error")
	err := &ClientError{
		Type:    ErrorTypeNetwork,
		Message: "test message",
		Cause:   cause,
	}

	unwrapped := err.Unwrap()
	if unwrapped != cause {
		t.Errorf("Expected unwrapped error to be %v, got %v", cause, unwrapped)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("Expected errors.Is to find the cause through ClientError")
	}
}

func TestClientErrorIs(t *testing.T) {
	err := &ClientError{Type: ErrorTypeHTTP, Message: "bad request", StatusCode: 400}

	if !errors.Is(err, &ClientError{Type: ErrorTypeHTTP}) {
		t.Error("Expected match on same type")
	}
	if errors.Is(err, &ClientError{Type: ErrorTypeNetwork}) {
		t.Error("Expected no match on different type")
	}
	if errors.Is(err, errors.New("HTTP")) {
		t.Error("Expected no match on non-ClientError target")
	}
}

func TestClientErrorTypes(t *testing.T) {
	testCases := []struct {
		errorType string
		message   string
		cause     error
	}{
		{ErrorTypeArgument, "consumer key must not be empty", nil},
		{ErrorTypeClosed, "client has been closed", ErrClientClosed},
		{ErrorTypeHTTP, "bad key", ErrUnexpectedStatus},
		{ErrorTypeNetwork, "network request failed", errors.New("connection refused")},
		{ErrorTypeValidation, "configuration validation failed", nil},
	}

	for _, tc := range testCases {
		err := &ClientError{
			Type:    tc.errorType,
			Message: tc.message,
			Cause:   tc.cause,
		}

		if !strings.HasPrefix(err.Error(), tc.errorType+": "+tc.message) {
			t.Errorf("Unexpected error string for %s: %s", tc.errorType, err.Error())
		}
		if tc.cause != nil && !errors.Is(err, tc.cause) {
			t.Errorf("Expected %s error to wrap its cause", tc.errorType)
		}
	}
}

func TestClientErrorDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeHTTP,
		Message:    "bad key",
		Cause:      ErrUnexpectedStatus,
		RequestID:  "req-123",
		Method:     "GET",
		URL:        "https://api.kaonavi.jp/api/v2.0/members",
		Endpoint:   "api.kaonavi.jp/api/v2.0/members",
		StatusCode: 400,
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:   150 * time.Millisecond,
	}

	info := err.DebugInfo()

	for _, want := range []string{
		"Error Type: HTTP",
		"Message: bad key",
		"Request ID: req-123",
		"Method: GET",
		"URL: https://api.kaonavi.jp/api/v2.0/members",
		"Endpoint: api.kaonavi.jp/api/v2.0/members",
		"Status Code: 400",
		"Timestamp: 2024-01-01T00:00:00Z",
		"Duration: 150ms",
		"Cause: " + ErrUnexpectedStatus.Error(),
	} {
		if !strings.Contains(info, want) {
			t.Errorf("DebugInfo missing %q:\n%s", want, info)
		}
	}
}

func TestArgumentErrorHelpers(t *testing.T) {
	err := argumentError("id", "task id must not be negative")

	param, ok := IsArgumentError(err)
	if !ok || param != "id" {
		t.Errorf("Expected argument error for id, got %q %v", param, ok)
	}

	if _, ok := IsArgumentError(errors.New("plain")); ok {
		t.Error("Expected plain error not to be an argument error")
	}

	if IsHTTPError(err) {
		t.Error("Expected argument error not to be an HTTP error")
	}
	if StatusCode(err) != 0 {
		t.Errorf("Expected status 0, got %d", StatusCode(err))
	}
}

func TestClosedError(t *testing.T) {
	err := closedError()

	if !errors.Is(err, ErrClientClosed) {
		t.Error("Expected closed error to wrap ErrClientClosed")
	}
	if err.Type != ErrorTypeClosed {
		t.Errorf("Expected type %s, got %s", ErrorTypeClosed, err.Type)
	}
}
