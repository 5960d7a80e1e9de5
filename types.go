package kaonavi

import (
	"net/http"
)

const (
	// DefaultBaseURL is the Kaonavi API v2 endpoint.
	DefaultBaseURL = "https://api.kaonavi.jp/api/v2.0"

	tokenPath      = "/token"
	tokenHeader    = "Kaonavi-Token"
	dryRunHeader   = "Dry-Run"
	contentTypeKey = "Content-Type"
	jsonMediaType  = "application/json"
	errorsProperty = "errors"
)

// Middleware represents a middleware function
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option represents a configuration option
type Option func(*Client)

// Request describes one API call. Path is relative to the client's base URL.
// Mutating requests are only accepted from DoMutating, which holds a
// mutating-call permit for them; Call rejects them.
type Request struct {
	Method   string
	Path     string
	Body     []byte
	Mutating bool
}

// Token is the bearer credential returned by the token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TaskHandle identifies the server-side job started by a mutating call.
type TaskHandle int
