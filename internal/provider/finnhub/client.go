package finnhub

import (
	"net/http"
	"net/url"
	"time"
)

const (
	baseURL = "https://finnhub.io/api/v1"
	// DemoToken is the public demo credential used when no key is configured.
	DemoToken = "demo"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=finnhub_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Finnhub stock API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// token is the credential, also used as the rate limiter key.
	token string
	// timeout bounds each call.
	timeout time.Duration
}

// Option is a configuration option for the Finnhub client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithTimeout bounds every call made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a new Finnhub client. An empty token falls back to DemoToken.
func NewClient(token string, options ...Option) (*Client, error) {
	if token == "" {
		token = DemoToken
	}
	var client = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		token:      token,
		timeout:    8 * time.Second,
	}
	// Finnhub authenticates with a query parameter.
	// https://finnhub.io/docs/api/authentication
	client.query.Set("token", token)
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Token returns the credential the client authenticates with.
func (c *Client) Token() string { return c.token }
