package coingeckoadapter

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"

    "marketdata/internal/provider"
    "marketdata/internal/provider/coingecko"
    "marketdata/internal/provider/ratelimit"
    "marketdata/internal/retry"
)

// Client is the subset of the CoinGecko client the adapter uses.
type Client interface {
    GetMarkets(ctx context.Context, params coingecko.MarketsParams) ([]coingecko.Market, error)
    GetMarketChart(ctx context.Context, id, currency string, days int) (*coingecko.MarketChart, error)
    Keyed() bool
}

type Config struct {
    Name        string          // source label, default: coingecko
    Category    string          // category stamped on every coin, default: Cryptocurrency
    MaxAttempts int             // default: 3
    Schedule    []time.Duration // default: retry.DefaultSchedule
    // KeylessPerMinute and KeyedPerMinute pace calls for the public and
    // keyed tiers. Zero disables pacing for that tier.
    KeylessPerMinute int
    KeyedPerMinute   int
}

type Adapter struct {
    cfg    Config
    client Client
    pacer  *ratelimit.Pacer
    logger *zap.Logger
}

type Option func(*Adapter)

func WithLogger(logger *zap.Logger) Option { return func(a *Adapter) { a.logger = logger } }

func New(cfg Config, client Client, opts ...Option) *Adapter {
    if cfg.Name == "" { cfg.Name = "coingecko" }
    if cfg.Category == "" { cfg.Category = "Cryptocurrency" }
    if cfg.MaxAttempts <= 0 { cfg.MaxAttempts = 3 }
    if len(cfg.Schedule) == 0 { cfg.Schedule = retry.DefaultSchedule }
    perMinute := cfg.KeylessPerMinute
    if client.Keyed() { perMinute = cfg.KeyedPerMinute }
    a := &Adapter{
        cfg:    cfg,
        client: client,
        pacer:  ratelimit.NewPacer(perMinute, perMinute),
        logger: zap.NewNop(),
    }
    for _, opt := range opts { opt(a) }
    return a
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) policy(op string) retry.Policy {
    return retry.Policy{MaxAttempts: a.cfg.MaxAttempts, Schedule: a.cfg.Schedule, Logger: a.logger, Name: op}
}

// Markets returns the top limit coins by market cap in currency.
// An empty listing counts as a failed attempt.
func (a *Adapter) Markets(ctx context.Context, currency string, limit int) ([]provider.Coin, error) {
    currency = strings.ToLower(strings.TrimSpace(currency))
    markets, err := retry.Do(ctx, a.policy("coingecko.markets"), func(ctx context.Context) ([]coingecko.Market, error) {
        if err := a.pacer.Wait(ctx); err != nil {
            return nil, retry.Permanent(err)
        }
        ms, err := a.client.GetMarkets(ctx, coingecko.MarketsParams{Currency: currency, PerPage: limit, Page: 1})
        if err != nil {
            return nil, classify(err)
        }
        if len(ms) == 0 {
            return nil, provider.ErrEmptyPayload
        }
        return ms, nil
    })
    if err != nil {
        return nil, fmt.Errorf("markets %s: %w", currency, err)
    }

    out := make([]provider.Coin, 0, len(markets))
    for _, m := range markets {
        out = append(out, a.normalize(m))
    }
    if limit > 0 && len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

// History returns daily closing prices for id over the last days.
func (a *Adapter) History(ctx context.Context, id, currency string, days int) ([]provider.Point, error) {
    id = strings.ToLower(strings.TrimSpace(id))
    currency = strings.ToLower(strings.TrimSpace(currency))
    chart, err := retry.Do(ctx, a.policy("coingecko.market_chart"), func(ctx context.Context) (*coingecko.MarketChart, error) {
        if err := a.pacer.Wait(ctx); err != nil {
            return nil, retry.Permanent(err)
        }
        c, err := a.client.GetMarketChart(ctx, id, currency, days)
        if err != nil {
            return nil, classify(err)
        }
        if len(c.Prices) == 0 {
            return nil, provider.ErrEmptyPayload
        }
        return c, nil
    })
    if err != nil {
        return nil, fmt.Errorf("history %s: %w", id, err)
    }

    out := make([]provider.Point, 0, len(chart.Prices))
    for _, p := range chart.Prices {
        out = append(out, provider.Point{Time: int64(p[0]) / 1000, Value: p[1]})
    }
    return out, nil
}

// classify marks errors that another attempt cannot fix.
// Transport, timeout, status and empty payload failures stay retryable.
func classify(err error) error {
    var pe *provider.ProviderError
    switch {
    case provider.IsRateLimited(err), errors.As(err, &pe):
        return retry.Permanent(err)
    case errors.Is(err, context.Canceled):
        return retry.Permanent(err)
    }
    return err
}

func (a *Adapter) normalize(m coingecko.Market) provider.Coin {
    return provider.Coin{
        ID:                       m.ID,
        Symbol:                   m.Symbol,
        Name:                     m.Name,
        Image:                    m.Image,
        CurrentPrice:             deref(m.CurrentPrice),
        MarketCap:                deref(m.MarketCap),
        PriceChangePercentage24h: deref(m.PriceChangePercentage24h),
        TotalVolume:              deref(m.TotalVolume),
        Category:                 a.cfg.Category,
    }
}

func deref(v *float64) float64 {
    if v == nil { return 0 }
    return *v
}
