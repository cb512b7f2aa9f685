package httpx

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net"
    "net/http"
    "net/url"
    "time"
)

// maxBody caps how much of a provider response is read into memory.
const maxBody = 8 << 20

// Doer is the minimal client surface the fetcher needs.
type Doer interface {
    Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
    HTTP      *http.Client
    UserAgent string
    Headers   map[string]string
}

// New returns a Client whose transport is tuned for many short provider calls.
// The per-call deadline is applied by Fetch, so the http.Client timeout is only
// a last-resort ceiling.
func New(timeout time.Duration) *Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          200,
        MaxIdleConnsPerHost:   100,
        MaxConnsPerHost:       100,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   3 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
    }
    return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "marketdata/1.0"}
}

// Do sets default headers and performs req.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
    if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
        req.Header.Set("User-Agent", c.UserAgent)
    }
    for k, v := range c.Headers {
        if req.Header.Get(k) == "" {
            req.Header.Set(k, v)
        }
    }
    return c.HTTP.Do(req)
}

// Response is a fully read provider response.
type Response struct {
    StatusCode int
    Header     http.Header
    Body       []byte
}

// TimeoutError reports a call cancelled by its own deadline.
type TimeoutError struct {
    URL     string
    Timeout time.Duration
}

func (e *TimeoutError) Error() string {
    return fmt.Sprintf("GET %s: timed out after %s", e.URL, e.Timeout)
}

// TransportError reports a network, DNS or connection failure.
type TransportError struct {
    URL string
    Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("GET %s: %v", e.URL, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response.
type StatusError struct {
    Code int
    Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body) }

// Fetch issues one GET bounded by timeout. The deadline covers reading the
// body as well; its timer is released on every return path.
// A deadline firing yields *TimeoutError, other transport failures yield
// *TransportError. A cancelled parent context is returned as is.
func Fetch(ctx context.Context, doer Doer, rawURL string, header http.Header, timeout time.Duration) (*Response, error) {
    callCtx := ctx
    cancel := context.CancelFunc(func() {})
    if timeout > 0 {
        callCtx, cancel = context.WithTimeout(ctx, timeout)
    }
    defer cancel()

    req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, http.NoBody)
    if err != nil {
        return nil, fmt.Errorf("creating request: %w", err)
    }
    for k, vs := range header {
        for _, v := range vs {
            req.Header.Add(k, v)
        }
    }
    if req.Header.Get("Accept") == "" {
        req.Header.Set("Accept", "application/json")
    }

    res, err := doer.Do(req)
    if err != nil {
        return nil, classify(ctx, callCtx, rawURL, timeout, err)
    }
    defer res.Body.Close()

    body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
    if err != nil {
        return nil, classify(ctx, callCtx, rawURL, timeout, err)
    }
    return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, nil
}

func classify(parent, call context.Context, rawURL string, timeout time.Duration, err error) error {
    if parent.Err() != nil {
        return parent.Err()
    }
    if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
        return &TimeoutError{URL: redact(rawURL), Timeout: timeout}
    }
    var ne net.Error
    if errors.As(err, &ne) && ne.Timeout() {
        return &TimeoutError{URL: redact(rawURL), Timeout: timeout}
    }
    // url.Error repeats the full URL, which may carry a credential.
    var ue *url.Error
    if errors.As(err, &ue) {
        err = ue.Err
    }
    return &TransportError{URL: redact(rawURL), Err: err}
}

// redact drops credential-bearing query parameters from u for error messages.
func redact(u string) string {
    parsed, err := url.Parse(u)
    if err != nil {
        return u
    }
    q := parsed.Query()
    for _, k := range []string{"token", "api_key", "apikey", "x_cg_demo_api_key", "x_cg_pro_api_key"} {
        if q.Has(k) {
            q.Set(k, "REDACTED")
        }
    }
    parsed.RawQuery = q.Encode()
    return parsed.String()
}

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
    var te *TimeoutError
    return errors.As(err, &te)
}
