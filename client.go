package kaonavi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Client is the request pipeline for the Kaonavi API. It authenticates lazily,
// throttles mutating calls and classifies failures. It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	timeout      time.Duration
	creds        credentials
	middleware   []Middleware
	logger       hclog.Logger
	requestIDGen func() string
	metrics      *MetricsCollector

	mutatingLimit  int
	mutatingWindow time.Duration
	limiter        *MutatingLimiter
	readLimiter    *rate.Limiter
	clock          clockwork.Clock

	state     clientState
	authGroup singleflight.Group
}

type credentials struct {
	key    string
	secret string
}

// clientState is the mutable per-client state shared by every call.
type clientState struct {
	mu          sync.RWMutex
	accessToken string
	dryRun      bool
	closed      bool
}

// New constructs a Client for the given consumer key and secret. Arguments and
// options are validated before anything is started.
func New(consumerKey, consumerSecret string, options ...Option) (*Client, error) {
	if strings.TrimSpace(consumerKey) == "" {
		return nil, argumentError("consumerKey", "consumer key must not be empty")
	}
	if strings.TrimSpace(consumerSecret) == "" {
		return nil, argumentError("consumerSecret", "consumer secret must not be empty")
	}

	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:        DefaultBaseURL,
		timeout:        30 * time.Second,
		creds:          credentials{key: consumerKey, secret: consumerSecret},
		middleware:     []Middleware{},
		logger:         hclog.NewNullLogger(),
		requestIDGen:   uuid.NewString,
		metrics:        nil,
		mutatingLimit:  DefaultMutatingLimit,
		mutatingWindow: DefaultMutatingWindow,
		clock:          clockwork.NewRealClock(),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		return nil, err
	}

	client.baseURL = strings.TrimRight(client.baseURL, "/")
	client.limiter = newMutatingLimiter(client.mutatingLimit, client.mutatingWindow, client.clock, client.metrics.RecordPermitsConsumed)

	return client, nil
}

// AccessToken returns the cached bearer token, or "" when none is cached.
func (c *Client) AccessToken() string {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return c.state.accessToken
}

// SetAccessToken replaces the cached bearer token. An empty string clears it so
// the next call authenticates again.
func (c *Client) SetAccessToken(token string) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.accessToken = token
}

// DryRun reports whether requests carry the dry-run header.
func (c *Client) DryRun() bool {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return c.state.dryRun
}

// SetDryRun toggles the dry-run header. In dry-run mode the API validates
// mutating calls without applying them.
func (c *Client) SetDryRun(enabled bool) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.dryRun = enabled
}

// MutatingCallsInWindow returns how many mutating calls are in flight or
// completed within the current rolling window.
func (c *Client) MutatingCallsInWindow() int {
	return c.limiter.Consumed()
}

// Close releases the client's background resources and discards pending permit
// replenishments. Every later call fails with ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	c.state.mu.Lock()
	if c.state.closed {
		c.state.mu.Unlock()
		return nil
	}
	c.state.closed = true
	c.state.mu.Unlock()

	c.limiter.Close()
	c.logger.Debug("Client closed")
	return nil
}

func (c *Client) isClosed() bool {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return c.state.closed
}

func (c *Client) snapshot() (token string, dryRun bool) {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return c.state.accessToken, c.state.dryRun
}
