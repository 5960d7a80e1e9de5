package kaonavi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Call sends r with the cached bearer token, authenticating first if needed, and
// returns the response once its status is known to be 2xx. The caller must
// close the response body. Mutating requests are rejected; they must go through
// DoMutating so they consume a permit.
func (c *Client) Call(ctx context.Context, r Request) (*http.Response, error) {
	if c.isClosed() {
		return nil, closedError()
	}
	if r.Mutating {
		return nil, argumentError("mutating", "mutating requests must be sent with DoMutating")
	}
	return c.call(ctx, r)
}

// call is Call without the mutating guard. DoMutating holds a permit when it
// gets here.
func (c *Client) call(ctx context.Context, r Request) (*http.Response, error) {
	if c.isClosed() {
		return nil, closedError()
	}
	if r.Method == "" {
		return nil, argumentError("method", "HTTP method must not be empty")
	}
	if r.Path == "" {
		return nil, argumentError("path", "request path must not be empty")
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	if !r.Mutating && c.readLimiter != nil {
		if err := c.readLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	requestID := c.requestIDGen()

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+ensureLeadingSlash(r.Path), body)
	if err != nil {
		return nil, err
	}

	_, dryRun := c.snapshot()
	req.Header.Set(tokenHeader, token)
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", jsonMediaType)
	if r.Body != nil {
		req.Header.Set(contentTypeKey, jsonMediaType)
	}
	if dryRun {
		req.Header.Set(dryRunHeader, "1")
	}

	c.logger.Debug("Starting request", "requestID", requestID, "method", req.Method, "endpoint", getEndpointFromRequest(req), "mutating", r.Mutating, "dryRun", dryRun)

	return c.send(req, requestID, start)
}

// Do sends r and decodes the response body with decode.
func Do[T any](ctx context.Context, c *Client, r Request, decode Decoder[T]) (T, error) {
	var zero T
	if decode == nil {
		return zero, argumentError("decode", "decoder must not be nil")
	}

	resp, err := c.Call(ctx, r)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	return decode(resp.Body)
}

// DoMutating issues a write. It waits for a mutating-call permit, encodes
// payload with encode (a nil encode sends no body) and returns the handle of
// the task the server started. The permit is handed back immediately if any
// step fails and otherwise held for the limiter's window.
func DoMutating[P any](ctx context.Context, c *Client, method, path string, payload P, encode Encoder[P]) (TaskHandle, error) {
	if c.isClosed() {
		return 0, closedError()
	}
	if method == "" {
		return 0, argumentError("method", "HTTP method must not be empty")
	}
	if path == "" {
		return 0, argumentError("path", "request path must not be empty")
	}

	waitStart := time.Now()
	permit, err := c.limiter.Acquire(ctx)
	if err != nil {
		c.logger.Debug("Permit acquisition aborted", "method", method, "path", path, "error", err)
		return 0, err
	}
	c.metrics.RecordPermitWait(time.Since(waitStart))

	committed := false
	defer func() {
		if !committed {
			permit.Release()
		}
	}()

	var body []byte
	if encode != nil {
		body, err = encode(payload)
		if err != nil {
			return 0, err
		}
	}

	resp, err := c.call(ctx, Request{Method: method, Path: path, Body: body, Mutating: true})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		TaskID *int `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if result.TaskID == nil {
		return 0, ErrMissingTaskID
	}

	permit.Commit()
	committed = true

	endpoint := getEndpointFromRequest(resp.Request)
	c.metrics.RecordTaskSubmitted(method, endpoint)
	c.logger.Debug("Task submitted", "method", method, "endpoint", endpoint, "taskID", *result.TaskID, "mutatingCallsInWindow", c.limiter.Consumed())

	return TaskHandle(*result.TaskID), nil
}

// send runs req through the middleware chain and validates the response.
func (c *Client) send(req *http.Request, requestID string, start time.Time) (*http.Response, error) {
	endpoint := getEndpointFromRequest(req)

	c.metrics.RecordRequestStart(req.Method, endpoint)
	resp, err := c.executeMiddleware(req)
	c.metrics.RecordRequestEnd(req.Method, endpoint)

	if err != nil {
		c.metrics.RecordError(ErrorTypeNetwork, req.Method, endpoint)
		c.logger.Warn("Request failed", "requestID", requestID, "endpoint", endpoint, "error", err)
		return nil, c.createClientError(ErrorTypeNetwork, "network request failed", err, requestID, req, 0, time.Since(start))
	}

	c.metrics.RecordRequest(req.Method, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("Request completed", "requestID", requestID, "endpoint", endpoint, "statusCode", resp.StatusCode, "duration", time.Since(start))
		return resp, nil
	}

	defer resp.Body.Close()
	data, readErr := io.ReadAll(resp.Body)
	message := extractErrorMessage(resp.Header.Get(contentTypeKey), data)
	if message == "" {
		message = resp.Status
	}

	cause := fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	if readErr != nil {
		cause = fmt.Errorf("%w (reading body: %v)", cause, readErr)
	}

	c.metrics.RecordError(ErrorTypeHTTP, req.Method, endpoint)
	c.logger.Warn("Request rejected", "requestID", requestID, "endpoint", endpoint, "statusCode", resp.StatusCode, "message", message)

	return nil, c.createClientError(ErrorTypeHTTP, message, cause, requestID, req, resp.StatusCode, time.Since(start))
}

// extractErrorMessage reads an error body: JSON bodies carry their messages in
// an envelope ({"errors": ["..."]}), anything else is taken as plain text. The
// "errors" property is preferred over the first array in the object.
func extractErrorMessage(contentType string, body []byte) string {
	if isJSONContentType(contentType) {
		for _, property := range []string{errorsProperty, ""} {
			if env, err := DecodeEnvelope[string](body, property); err == nil {
				return strings.Join(env.Items, "\n")
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == jsonMediaType || strings.HasSuffix(mediaType, "+json")
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

func (c *Client) createClientError(errorType, message string, cause error, requestID string, req *http.Request, statusCode int, duration time.Duration) *ClientError {
	return &ClientError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Method:     req.Method,
		URL:        req.URL.String(),
		Endpoint:   getEndpointFromRequest(req),
		StatusCode: statusCode,
		Timestamp:  time.Now(),
		Duration:   duration,
	}
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func getEndpointFromRequest(req *http.Request) string {
	if req == nil || req.URL == nil {
		return "unknown"
	}

	host := req.URL.Host
	path := req.URL.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
