package kaonavi

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, options ...Option) *Client {
	t.Helper()

	client, err := New(testConsumerKey, testConsumerSecret, options...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWithTimeout(t *testing.T) {
	client := newTestClient(t, WithTimeout(5*time.Second))

	if client.timeout != 5*time.Second {
		t.Errorf("Expected timeout=5s, got %v", client.timeout)
	}
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Expected http client timeout=5s, got %v", client.httpClient.Timeout)
	}
}

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{}
	client := newTestClient(t, WithTimeout(7*time.Second), WithHTTPClient(custom))

	if client.httpClient != custom {
		t.Error("Expected custom HTTP client to be used")
	}
	if custom.Timeout != 7*time.Second {
		t.Errorf("Expected timeout carried to custom client, got %v", custom.Timeout)
	}
}

func TestWithMiddleware(t *testing.T) {
	noop := func(req *http.Request, next RoundTripper) (*http.Response, error) {
		return next.RoundTrip(req)
	}
	client := newTestClient(t, WithMiddleware(noop), WithMiddleware(noop, noop))

	if len(client.middleware) != 3 {
		t.Errorf("Expected 3 middleware, got %d", len(client.middleware))
	}
}

func TestWithLogger(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{Name: "kaonavi-test", Level: hclog.Debug})
	client := newTestClient(t, WithLogger(logger))

	if client.logger != logger {
		t.Error("Expected custom logger to be used")
	}
}

func TestWithRequestIDGenerator(t *testing.T) {
	client := newTestClient(t, WithRequestIDGenerator(func() string { return "fixed" }))

	if id := client.requestIDGen(); id != "fixed" {
		t.Errorf("Expected request ID 'fixed', got %q", id)
	}
}

func TestWithMetricsCollector(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := newTestClient(t, WithMetricsCollector(collector))

	if client.metrics != collector {
		t.Error("Expected custom metrics collector to be used")
	}
}

func TestWithDryRunAndAccessToken(t *testing.T) {
	client := newTestClient(t, WithDryRun(true), WithAccessToken("seed"))

	if !client.DryRun() {
		t.Error("Expected dry-run enabled")
	}
	if client.AccessToken() != "seed" {
		t.Errorf("Expected seeded token, got %q", client.AccessToken())
	}
}

func TestWithMutatingLimit(t *testing.T) {
	client := newTestClient(t, WithMutatingLimit(2, 10*time.Second))

	if client.limiter.Limit() != 2 {
		t.Errorf("Expected limit=2, got %d", client.limiter.Limit())
	}
	if client.limiter.Window() != 10*time.Second {
		t.Errorf("Expected window=10s, got %v", client.limiter.Window())
	}
}

func TestWithReadRateLimit(t *testing.T) {
	client := newTestClient(t, WithReadRateLimit(rate.Limit(2), 4))

	if client.readLimiter == nil {
		t.Fatal("Expected read limiter to be set")
	}
	if client.readLimiter.Burst() != 4 {
		t.Errorf("Expected burst=4, got %d", client.readLimiter.Burst())
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		want    []string
	}{
		{
			name:    "invalid base URL scheme",
			options: []Option{WithBaseURL("ftp://example.com")},
			want:    []string{"baseURL must use http or https"},
		},
		{
			name:    "missing host",
			options: []Option{WithBaseURL("https://")},
			want:    []string{"baseURL must include a host"},
		},
		{
			name:    "non-positive timeout",
			options: []Option{WithTimeout(0)},
			want:    []string{"timeout must be positive"},
		},
		{
			name:    "nil HTTP client",
			options: []Option{WithHTTPClient(nil)},
			want:    []string{"HTTP client cannot be nil"},
		},
		{
			name:    "invalid mutating limit",
			options: []Option{WithMutatingLimit(0, 0)},
			want:    []string{"mutating limit must be positive", "mutating window must be positive"},
		},
		{
			name:    "nil observability",
			options: []Option{WithLogger(nil), WithRequestIDGenerator(nil)},
			want:    []string{"logger cannot be nil", "request ID generator cannot be nil"},
		},
		{
			name:    "nil middleware",
			options: []Option{WithMiddleware(nil)},
			want:    []string{"middleware[0] cannot be nil"},
		},
		{
			name:    "zero read burst",
			options: []Option{WithReadRateLimit(rate.Limit(1), 0)},
			want:    []string{"read rate limit burst must be positive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(testConsumerKey, testConsumerSecret, tt.options...)
			if err == nil {
				client.Close()
				t.Fatal("Expected validation error")
			}
			if client != nil {
				t.Error("Expected nil client on validation error")
			}

			var clientErr *ClientError
			if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeValidation {
				t.Fatalf("Expected validation ClientError, got %v", err)
			}

			var merr *multierror.Error
			if !errors.As(err, &merr) {
				t.Fatalf("Expected multierror cause, got %T", clientErr.Cause)
			}
			if len(merr.Errors) != len(tt.want) {
				t.Errorf("Expected %d errors, got %d: %v", len(tt.want), len(merr.Errors), merr)
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Expected error to contain %q, got %v", want, err)
				}
			}
		})
	}
}

func TestValidateConfigurationDefaults(t *testing.T) {
	client := newTestClient(t)

	if err := client.ValidateConfiguration(); err != nil {
		t.Errorf("Expected default configuration to be valid, got %v", err)
	}
}
