package provider

import (
    "time"
)

// Quote is the normalized stock record returned to consumers.
// Numeric fields are always present; values the provider omits map to zero.
type Quote struct {
    Symbol        string    `json:"symbol"`
    Name          string    `json:"name"`
    Price         float64   `json:"price"`
    Change        float64   `json:"change"`
    ChangePercent float64   `json:"changePercent"`
    High          float64   `json:"high"`
    Low           float64   `json:"low"`
    Open          float64   `json:"open"`
    PreviousClose float64   `json:"previousClose"`
    MarketCap     float64   `json:"marketCap"`
    Logo          string    `json:"logo"`
    Sector        string    `json:"sector"`
    Source        string    `json:"source"`
    ReceivedAt    time.Time `json:"received_at"`
}

// Coin is the normalized crypto market record. Field names follow the
// market listing shape the UI already consumes.
type Coin struct {
    ID                       string  `json:"id"`
    Symbol                   string  `json:"symbol"`
    Name                     string  `json:"name"`
    Image                    string  `json:"image"`
    CurrentPrice             float64 `json:"current_price"`
    MarketCap                float64 `json:"market_cap"`
    PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
    TotalVolume              float64 `json:"total_volume"`
    Category                 string  `json:"category"`
}

// Point is one sample of a historical series.
type Point struct {
    Time  int64   `json:"time"` // epoch seconds
    Value float64 `json:"value"`
}

// Result carries the outcome of a single item inside a batch.
type Result[T any] struct {
    Key   string
    Value T
    Err   error
}

// Collect keeps successful values in input order and returns the failures separately.
func Collect[T any](results []Result[T]) ([]T, []error) {
    out := make([]T, 0, len(results))
    var errs []error
    for _, r := range results {
        if r.Err != nil {
            errs = append(errs, r.Err)
            continue
        }
        out = append(out, r.Value)
    }
    return out, errs
}
