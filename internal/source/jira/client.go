package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/jira-import/internal/credential"
)

// ErrUnauthorized is returned when JIRA answers 401.
var ErrUnauthorized = errors.New("authentication failed")

// Client is a thin HTTP client for the Jira Server/DC REST API v2.
// It authenticates with a bearer Personal Access Token, or with basic
// auth when the credential carries a username, and retries HTTP 429
// responses with exponential backoff.
type Client struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
	maxRetries int
	maxBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxBackoff caps the wait between rate-limited attempts.
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// NewClient creates a new Jira HTTP client for the given credential.
func NewClient(cred credential.Jira, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cred.BaseURL, "/"),
		username: cred.Username,
		token:    cred.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the Jira instance base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BrowseURL returns the Jira web URL for the given issue key.
func (c *Client) BrowseURL(issueKey string) string {
	return c.baseURL + "/browse/" + issueKey
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) authorize(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// do builds the request, handles auth, rate limiting with exponential
// backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		c.authorize(req)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			if attempt == c.maxRetries {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf(
				"%w (401): check the token for %s", ErrUnauthorized, c.baseURL,
			)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var jiraErr ErrorResponse
			if json.Unmarshal(respBody, &jiraErr) == nil &&
				(len(jiraErr.ErrorMessages) > 0 || len(jiraErr.Errors) > 0) {
				return fmt.Errorf(
					"jira API error (%d) on %s %s: %s %v",
					resp.StatusCode, method, path,
					strings.Join(jiraErr.ErrorMessages, "; "),
					jiraErr.Errors,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody),
			)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w", method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func (c *Client) retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			wait = time.Duration(seconds) * time.Second
		}
	}
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	return wait
}
