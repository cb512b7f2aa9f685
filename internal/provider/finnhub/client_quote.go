package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/provider"
)

const providerName = "finnhub"

// Quote is the /quote payload. Missing or null fields decode as zero.
type Quote struct {
	Current       float64
	Change        float64
	ChangePercent float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
	Timestamp     int64
}

// Profile is the /stock/profile2 payload.
type Profile struct {
	Name                 string
	Ticker               string
	MarketCapitalization float64
	Logo                 string
	Industry             string
}

// GetQuote retrieves the latest quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := c.get(ctx, "/quote", symbol)
	if err != nil {
		return nil, err
	}

	// {"c":150,"d":2,"dp":1.35,"h":151,"l":148,"o":149,"pc":148,"t":1700000000}
	q := &Quote{
		Current:       number(body, "c"),
		Change:        number(body, "d"),
		ChangePercent: number(body, "dp"),
		High:          number(body, "h"),
		Low:           number(body, "l"),
		Open:          number(body, "o"),
		PreviousClose: number(body, "pc"),
		Timestamp:     int64(number(body, "t")),
	}
	// Unknown symbols come back as all zeros.
	if q.Current == 0 && q.PreviousClose == 0 {
		return nil, fmt.Errorf("quote %s: %w", symbol, provider.ErrEmptyPayload)
	}
	return q, nil
}

// GetProfile retrieves company metadata for symbol.
func (c *Client) GetProfile(ctx context.Context, symbol string) (*Profile, error) {
	body, err := c.get(ctx, "/stock/profile2", symbol)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Name:                 text(body, "name"),
		Ticker:               text(body, "ticker"),
		MarketCapitalization: number(body, "marketCapitalization"),
		Logo:                 text(body, "logo"),
		Industry:             text(body, "finnhubIndustry"),
	}, nil
}

func (c *Client) get(ctx context.Context, path, symbol string) (map[string]any, error) {
	query := maps.Clone(c.query)
	query.Set("symbol", strings.ToUpper(strings.TrimSpace(symbol)))
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	res, err := httpx.Fetch(ctx, c.httpClient, endpoint, c.header, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusTooManyRequests:
		return nil, &provider.RateLimitError{Provider: providerName, RetryAfter: retryAfter(res.Header)}

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &provider.ProviderError{Provider: providerName, Message: "unauthorized"}

	default:
		return nil, &httpx.StatusError{Code: res.StatusCode, Body: snippet(res.Body)}
	}

	var body map[string]any
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if msg, ok := findError(body); ok {
		return nil, &provider.ProviderError{Provider: providerName, Message: fmt.Sprint(msg)}
	}
	return body, nil
}

// findError looks for an "error" key at any depth of a decoded body.
func findError(v any) (any, bool) {
	switch node := v.(type) {
	case map[string]any:
		if msg, ok := node["error"]; ok && msg != nil {
			return msg, true
		}
		for _, child := range node {
			if msg, ok := findError(child); ok {
				return msg, true
			}
		}
	case []any:
		for _, child := range node {
			if msg, ok := findError(child); ok {
				return msg, true
			}
		}
	}
	return nil, false
}

// number reads a numeric field, mapping absent, null or mistyped values to zero.
func number(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func text(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func snippet(b []byte) string {
	if len(b) > 256 {
		b = b[:256]
	}
	return string(b)
}
