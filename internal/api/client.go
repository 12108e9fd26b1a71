package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenSource supplies the bearer token for authenticated calls and knows how
// to exchange the refresh token when the backend rejects the current one.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) error
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Client talks to the order-management backend. All calls attach the bearer
// token when one is available and retry exactly once after a token refresh on
// a 401.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	tokens     TokenSource
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetTokenSource wires the session store in. The session itself uses the
// client for the token exchange, so this is set after construction.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, query, payload, "application/json", true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// One refresh+retry when the token was rejected.
	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil && c.tokens.AccessToken() != "" {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		c.logger.WithField("path", path).Info("Token rejected, attempting refresh")
		if err := c.tokens.Refresh(ctx); err != nil {
			return fmt.Errorf("token refresh failed: %w", err)
		}

		resp, err = c.send(ctx, method, path, query, payload, "application/json", true)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
	}

	return c.decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string, auth bool) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if auth && c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to backend: %w", err)
	}
	return resp, nil
}

func (c *Client) decode(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(body) > 0 {
			json.Unmarshal(body, apiErr)
		}
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

// PostForm sends a form-encoded POST without bearer auth and without the
// refresh retry. The OAuth2 token endpoint is the only caller.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	resp, err := c.send(ctx, http.MethodPost, path, nil, []byte(form.Encode()), "application/x-www-form-urlencoded", false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}
