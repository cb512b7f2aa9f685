package finnhubadapter

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "marketdata/internal/provider"
    "marketdata/internal/provider/finnhub"
    "marketdata/internal/provider/ratelimit"
)

// Client is the subset of the Finnhub client the adapter uses.
type Client interface {
    GetQuote(ctx context.Context, symbol string) (*finnhub.Quote, error)
    GetProfile(ctx context.Context, symbol string) (*finnhub.Profile, error)
    Token() string
}

type Config struct {
    Name           string // source label, default: finnhub
    MaxConcurrency int    // symbols fetched at once in a batch, default: 5
}

type Adapter struct {
    cfg     Config
    client  Client
    limiter *ratelimit.Limiter
    logger  *zap.Logger
    now     func() time.Time
}

type Option func(*Adapter)

func WithLogger(logger *zap.Logger) Option { return func(a *Adapter) { a.logger = logger } }

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

func New(cfg Config, client Client, limiter *ratelimit.Limiter, opts ...Option) *Adapter {
    if cfg.Name == "" { cfg.Name = "finnhub" }
    if cfg.MaxConcurrency <= 0 { cfg.MaxConcurrency = 5 }
    a := &Adapter{cfg: cfg, client: client, limiter: limiter, logger: zap.NewNop(), now: time.Now}
    for _, opt := range opts { opt(a) }
    return a
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Quote fetches the quote and the company profile for symbol in parallel and
// merges them. A failed profile degrades to empty metadata; a failed quote
// fails the record.
func (a *Adapter) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
    symbol = strings.ToUpper(strings.TrimSpace(symbol))
    if symbol == "" {
        return provider.Quote{}, errors.New("empty symbol")
    }

    var (
        q *finnhub.Quote
        p *finnhub.Profile
    )
    // A failed quote cancels the profile call, which may still be waiting on the limiter.
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        var err error
        q, err = call(gctx, a, symbol, a.client.GetQuote)
        return err
    })
    g.Go(func() error {
        var err error
        if p, err = call(gctx, a, symbol, a.client.GetProfile); err != nil {
            a.logger.Debug("profile unavailable, using defaults",
                zap.String("symbol", symbol), zap.Error(err))
        }
        return nil
    })
    if err := g.Wait(); err != nil {
        return provider.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
    }
    return Normalize(symbol, a.cfg.Name, q, p, a.now().UTC()), nil
}

// Quotes fetches every symbol concurrently. Symbols that fail are logged and
// excluded; an error is returned only when nothing succeeded.
func (a *Adapter) Quotes(ctx context.Context, symbols []string) ([]provider.Quote, error) {
    results := make([]provider.Result[provider.Quote], len(symbols))

    var g errgroup.Group
    g.SetLimit(a.cfg.MaxConcurrency)
    for i, sym := range symbols {
        g.Go(func() error {
            q, err := a.Quote(ctx, sym)
            results[i] = provider.Result[provider.Quote]{Key: sym, Value: q, Err: err}
            return nil
        })
    }
    _ = g.Wait()

    out, errs := provider.Collect(results)
    for _, r := range results {
        if r.Err != nil {
            a.logger.Warn("symbol excluded from batch", zap.String("symbol", r.Key), zap.Error(r.Err))
        }
    }
    if len(out) == 0 && len(errs) > 0 {
        return nil, fmt.Errorf("all %d symbols failed: %w", len(errs), errors.Join(errs...))
    }
    return out, nil
}

// call admits one request through the limiter and records an observed 429.
func call[T any](ctx context.Context, a *Adapter, symbol string, fn func(context.Context, string) (T, error)) (T, error) {
    token := a.client.Token()
    if err := a.limiter.Admit(ctx, token); err != nil {
        var zero T
        return zero, err
    }
    v, err := fn(ctx, symbol)
    if provider.IsRateLimited(err) {
        a.limiter.RecordRejection(token)
    }
    return v, err
}

// Normalize merges a quote and an optional profile into one record.
func Normalize(symbol, source string, q *finnhub.Quote, p *finnhub.Profile, now time.Time) provider.Quote {
    out := provider.Quote{Symbol: symbol, Name: symbol, Source: source, ReceivedAt: now}
    if q != nil {
        out.Price = q.Current
        out.Change = q.Change
        out.ChangePercent = q.ChangePercent
        out.High = q.High
        out.Low = q.Low
        out.Open = q.Open
        out.PreviousClose = q.PreviousClose
    }
    if p != nil {
        if p.Name != "" { out.Name = p.Name }
        out.MarketCap = p.MarketCapitalization
        out.Logo = p.Logo
        out.Sector = p.Industry
    }
    return out
}
