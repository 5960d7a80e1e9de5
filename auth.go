package kaonavi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Authenticate requests a fresh bearer token with the client's consumer key and
// secret. It always performs a round trip and neither reads nor updates the
// cached token.
func (c *Client) Authenticate(ctx context.Context) (*Token, error) {
	if c.isClosed() {
		return nil, closedError()
	}

	start := time.Now()
	requestID := c.requestIDGen()
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.creds.key, c.creds.secret)
	req.Header.Set(contentTypeKey, "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent())

	c.logger.Debug("Requesting access token", "requestID", requestID, "endpoint", getEndpointFromRequest(req))

	resp, err := c.send(req, requestID, start)
	if err != nil {
		c.metrics.RecordAuthentication(false)
		return nil, err
	}
	defer resp.Body.Close()

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		c.metrics.RecordAuthentication(false)
		return nil, err
	}
	if token.AccessToken == "" {
		c.metrics.RecordAuthentication(false)
		return nil, fmt.Errorf("kaonavi: token response has no access_token")
	}

	c.metrics.RecordAuthentication(true)
	c.logger.Debug("Access token issued", "requestID", requestID, "tokenType", token.TokenType, "expiresIn", token.ExpiresIn)
	return &token, nil
}

// ensureToken returns the cached token, authenticating first when none is cached.
// Concurrent callers that find the cache empty share one round trip.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if token := c.AccessToken(); token != "" {
		return token, nil
	}

	v, err, _ := c.authGroup.Do("token", func() (interface{}, error) {
		if token := c.AccessToken(); token != "" {
			return token, nil
		}
		token, err := c.Authenticate(ctx)
		if err != nil {
			return "", err
		}
		c.SetAccessToken(token.AccessToken)
		return token.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
