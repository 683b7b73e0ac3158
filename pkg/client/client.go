package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/settings"
)

// DefaultTimeout bounds every request made by a Client
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// IsForbidden reports whether err is a 403 from the API
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to the SolarPro HTTP API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken starts the client with an existing session token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the API rooted at baseURL
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("client: API key is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the current session token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SignIn starts a session and keeps its token for later calls
func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	var resp struct {
		Success bool             `json:"success"`
		Data    *auth.AuthResult `json:"data"`
	}
	body := map[string]string{"action": "signin", "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil || resp.Data.Session == nil {
		return nil, errors.New("client: sign-in returned no session")
	}
	c.SetToken(resp.Data.Session.AccessToken)
	return resp.Data, nil
}

// SignOut ends the session and forgets the token
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Navigation returns the menu items visible to the caller
func (c *Client) Navigation(ctx context.Context) ([]rbac.NavItem, error) {
	var resp struct {
		Data []rbac.NavItem `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/navigation", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// List returns the settings records of kind, newest first
func (c *Client) List(ctx context.Context, kind settings.Kind) ([]map[string]any, error) {
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	path := "/api/settings?type=" + url.QueryEscape(string(kind))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []map[string]any{}
	}
	return resp.Data, nil
}

// Create posts a new settings record of kind and returns it as stored
func (c *Client) Create(ctx context.Context, kind settings.Kind, fields map[string]any) (map[string]any, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["type"] = string(kind)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/settings", body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Message = envelope.Error
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
