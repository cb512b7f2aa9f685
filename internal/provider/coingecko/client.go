package coingecko

import (
	"net/http"
	"net/url"
	"time"
)

const (
	baseURL = "https://api.coingecko.com/api/v3"
	// DemoKeyHeader carries a demo-plan key. Pro keys use x-cg-pro-api-key.
	DemoKeyHeader = "x-cg-demo-api-key"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coingecko_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the CoinGecko market API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// apiKey is optional; the public API works keyless at a lower quota.
	apiKey string
	// timeout bounds each call.
	timeout time.Duration
}

// Option is a configuration option for the CoinGecko client.
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

// WithAPIKey attaches key under headerName. An empty key sends no header.
func WithAPIKey(key, headerName string) Option {
	return func(c *Client) {
		c.apiKey = key
		if key == "" {
			return
		}
		if headerName == "" {
			headerName = DemoKeyHeader
		}
		c.header.Set(headerName, key)
	}
}

// WithTimeout bounds every call made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a new CoinGecko client.
func NewClient(options ...Option) (*Client, error) {
	var client = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		timeout:    10 * time.Second,
	}
	for _, option := range options {
		option(client)
	}
	if _, err := url.Parse(client.baseURL); err != nil {
		return nil, err
	}
	return client, nil
}

// Keyed reports whether a credential is configured.
func (c *Client) Keyed() bool { return c.apiKey != "" }
