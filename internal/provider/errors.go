package provider

import (
    "errors"
    "fmt"
    "time"
)

var (
    // ErrEmptyPayload marks a successful transport call that produced no usable records.
    // It is retryable: throttled providers often answer 200 with an empty body.
    ErrEmptyPayload = errors.New("empty payload")

    // ErrAggregationExhausted marks a series fetch that failed after all retry
    // and rate-limit handling. Only the cache reacts to it, by serving fallback data.
    ErrAggregationExhausted = errors.New("aggregation exhausted")
)

// ProviderError is a logical failure reported inside an otherwise successful response.
type ProviderError struct {
    Provider string
    Message  string
}

func (e *ProviderError) Error() string {
    return fmt.Sprintf("%s: provider error: %s", e.Provider, e.Message)
}

// RateLimitError is an observed 429 from a provider.
type RateLimitError struct {
    Provider   string
    RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
    if e.RetryAfter > 0 {
        return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
    }
    return fmt.Sprintf("%s: rate limited", e.Provider)
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
    var rl *RateLimitError
    return errors.As(err, &rl)
}
