package kaonavi

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// WithBaseURL sets the API root, e.g. https://api.kaonavi.jp/api/v2.0
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		if c.httpClient != nil && c.timeout != 0 {
			c.httpClient.Timeout = c.timeout
		}
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger hclog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// WithMetrics enables Prometheus metrics on the default registerer. Clients
// built with it share one collector; use WithMetricsCollector for a private
// registry.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDryRun starts the client in dry-run mode.
func WithDryRun(enabled bool) Option {
	return func(c *Client) {
		c.state.dryRun = enabled
	}
}

// WithAccessToken seeds the token cache so no authentication happens until the
// token is cleared.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.state.accessToken = token
	}
}

// WithMutatingLimit overrides the mutating-call quota: limit calls per window.
func WithMutatingLimit(limit int, window time.Duration) Option {
	return func(c *Client) {
		c.mutatingLimit = limit
		c.mutatingWindow = window
	}
}

// WithReadRateLimit paces non-mutating calls with a token bucket. Reads are not
// throttled by default.
func WithReadRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.readLimiter = rate.NewLimiter(r, burst)
	}
}

func withClock(clk clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var result *multierror.Error

	result = multierror.Append(result, c.validateTransportConfig()...)
	result = multierror.Append(result, c.validateRateLimiterConfig()...)
	result = multierror.Append(result, c.validateObservabilityConfig()...)
	result = multierror.Append(result, c.validateMiddlewareConfig()...)

	if err := result.ErrorOrNil(); err != nil {
		return &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "configuration validation failed",
			Cause:     err,
			Timestamp: time.Now(),
		}
	}

	return nil
}

func (c *Client) validateTransportConfig() []error {
	var errs []error

	if c.httpClient == nil {
		errs = append(errs, fmt.Errorf("HTTP client cannot be nil"))
	}

	if c.timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}

	u, err := url.Parse(c.baseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("baseURL is invalid: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("baseURL must use http or https, got %q", c.baseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("baseURL must include a host"))
	}

	return errs
}

func (c *Client) validateRateLimiterConfig() []error {
	var errs []error

	if c.mutatingLimit <= 0 {
		errs = append(errs, fmt.Errorf("mutating limit must be positive"))
	}
	if c.mutatingWindow <= 0 {
		errs = append(errs, fmt.Errorf("mutating window must be positive"))
	}
	if c.clock == nil {
		errs = append(errs, fmt.Errorf("clock cannot be nil"))
	}
	if c.readLimiter != nil && c.readLimiter.Burst() <= 0 && c.readLimiter.Limit() != rate.Inf {
		errs = append(errs, fmt.Errorf("read rate limit burst must be positive"))
	}

	return errs
}

func (c *Client) validateObservabilityConfig() []error {
	var errs []error

	if c.logger == nil {
		errs = append(errs, fmt.Errorf("logger cannot be nil"))
	}
	if c.requestIDGen == nil {
		errs = append(errs, fmt.Errorf("request ID generator cannot be nil"))
	}

	return errs
}

func (c *Client) validateMiddlewareConfig() []error {
	var errs []error

	for i, middleware := range c.middleware {
		if middleware == nil {
			errs = append(errs, fmt.Errorf("middleware[%d] cannot be nil", i))
		}
	}

	return errs
}
