package cli

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"github.com/solarpro/erp/pkg/client"
)

// Environment variables consulted for connection defaults
const (
	EnvAPIURL = "SOLARPRO_API_URL"
	EnvAPIKey = "SOLARPRO_STORE_API_KEY"
	EnvToken  = "SOLARPRO_TOKEN"
)

const defaultAPIURL = "http://localhost:8080"

// Connection holds the flags every API command shares
type Connection struct {
	URL     string
	APIKey  string
	Token   string
	Timeout time.Duration
}

// AddFlags registers the connection flags with defaults from env
func (c *Connection) AddFlags(flagSet *pflag.FlagSet, env Env) {
	url := env.Getenv(EnvAPIURL)
	if url == "" {
		url = defaultAPIURL
	}
	flagSet.StringVar(&c.URL, "url", url, "API base URL ($"+EnvAPIURL+")")
	flagSet.StringVar(&c.APIKey, "api-key", env.Getenv(EnvAPIKey), "store public API key ($"+EnvAPIKey+")")
	flagSet.StringVar(&c.Token, "token", env.Getenv(EnvToken), "session token ($"+EnvToken+")")
	flagSet.DurationVar(&c.Timeout, "timeout", 30*time.Second, "per-request timeout")
}

// Client builds an API client from the connection flags
func (c *Connection) Client() (*client.Client, error) {
	if c.APIKey == "" {
		return nil, errors.New("--api-key or " + EnvAPIKey + " is required")
	}
	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: c.Timeout})}
	if c.Token != "" {
		opts = append(opts, client.WithToken(c.Token))
	}
	return client.New(c.URL, c.APIKey, opts...)
}
