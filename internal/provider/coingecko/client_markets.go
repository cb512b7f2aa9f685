package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/provider"
)

const providerName = "coingecko"

// Market is one row of /coins/markets. Nullable numbers decode as nil.
type Market struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	TotalVolume              *float64 `json:"total_volume"`
}

// MarketsParams selects one page of the market listing.
type MarketsParams struct {
	Currency string
	PerPage  int
	Page     int
}

// MarketChart is the /coins/{id}/market_chart payload.
// Each price is a [epoch milliseconds, value] pair.
type MarketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// GetMarkets lists coins ordered by market cap.
func (c *Client) GetMarkets(ctx context.Context, params MarketsParams) ([]Market, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	query := url.Values{}
	query.Set("vs_currency", strings.ToLower(params.Currency))
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(params.PerPage))
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("sparkline", "false")
	query.Set("price_change_percentage", "24h")

	body, err := c.get(ctx, "/coins/markets", query)
	if err != nil {
		return nil, err
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("decoding markets response: %w", err)
	}
	return markets, nil
}

// GetMarketChart retrieves daily prices for id over the last days.
func (c *Client) GetMarketChart(ctx context.Context, id, currency string, days int) (*MarketChart, error) {
	query := url.Values{}
	query.Set("vs_currency", strings.ToLower(currency))
	query.Set("days", strconv.Itoa(days))
	query.Set("interval", "daily")

	body, err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", query)
	if err != nil {
		return nil, err
	}

	var chart MarketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decoding market chart response: %w", err)
	}
	return &chart, nil
}

// errorEnvelope covers both error shapes the API uses:
// {"error":"coin not found"} and {"status":{"error_code":429,"error_message":"..."}}.
type errorEnvelope struct {
	Error  any `json:"error"`
	Status *struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func (e errorEnvelope) message() string {
	if e.Error != nil {
		return fmt.Sprint(e.Error)
	}
	if e.Status != nil && (e.Status.ErrorCode != 0 || e.Status.ErrorMessage != "") {
		return fmt.Sprintf("%d: %s", e.Status.ErrorCode, e.Status.ErrorMessage)
	}
	return ""
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
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

	default:
		return nil, &httpx.StatusError{Code: res.StatusCode, Body: snippet(res.Body)}
	}

	// Objects are checked for an embedded error; listings are arrays.
	if trimmed := bytes.TrimSpace(res.Body); len(trimmed) > 0 && trimmed[0] == '{' {
		var env errorEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if msg := env.message(); msg != "" {
				if env.Status != nil && env.Status.ErrorCode == http.StatusTooManyRequests {
					return nil, &provider.RateLimitError{Provider: providerName}
				}
				return nil, &provider.ProviderError{Provider: providerName, Message: msg}
			}
		}
	}
	return res.Body, nil
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
