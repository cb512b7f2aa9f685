package aggregate

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "time"

    "go.uber.org/zap"

    "marketdata/internal/provider"
    "marketdata/internal/provider/cache"
    "marketdata/internal/provider/fallback"
)

// StockSource fetches live stock quotes.
type StockSource interface {
    Quote(ctx context.Context, symbol string) (provider.Quote, error)
    Quotes(ctx context.Context, symbols []string) ([]provider.Quote, error)
}

// CryptoSource fetches live crypto listings and price history.
type CryptoSource interface {
    Markets(ctx context.Context, currency string, limit int) ([]provider.Coin, error)
    History(ctx context.Context, id, currency string, days int) ([]provider.Point, error)
}

// Kind selects which instrument family a history request is for.
type Kind string

const (
    KindStock  Kind = "stock"
    KindCrypto Kind = "crypto"
)

// ParseKind accepts "stock(s)" and "crypto(s)" in any case.
func ParseKind(s string) (Kind, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "stock", "stocks":
        return KindStock, nil
    case "crypto", "cryptos":
        return KindCrypto, nil
    }
    return "", fmt.Errorf("unknown kind %q", s)
}

type Config struct {
    PopularSymbols  []string
    DefaultCurrency string // default: usd
    DefaultLimit    int    // default: 20
    MaxLimit        int    // default: 250
    MaxSymbols      int    // symbols accepted per batch, default: 50
    MaxDays         int    // default: 365
    TTL             time.Duration
    MaxItems        int
    // FillTimeout bounds one upstream fill behind the cache.
    FillTimeout time.Duration
}

// Service answers market data requests from the cache, the live adapters or
// the fallback data, in that order. Its methods never fail.
type Service struct {
    cfg     Config
    stocks  StockSource
    cryptos CryptoSource
    now     func() time.Time

    quotes  *cache.Series[provider.Quote]
    coins   *cache.Series[provider.Coin]
    history *cache.Series[provider.Point]
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(logger *zap.Logger) Option {
    return func(s *Service) {
        s.quotes.Logger = logger
        s.coins.Logger = logger
        s.history.Logger = logger
    }
}

func New(cfg Config, stocks StockSource, cryptos CryptoSource, opts ...Option) *Service {
    if cfg.DefaultCurrency == "" { cfg.DefaultCurrency = "usd" }
    if cfg.DefaultLimit <= 0 { cfg.DefaultLimit = 20 }
    if cfg.MaxLimit <= 0 { cfg.MaxLimit = 250 }
    if cfg.MaxSymbols <= 0 { cfg.MaxSymbols = 50 }
    if cfg.MaxDays <= 0 { cfg.MaxDays = 365 }
    if cfg.TTL <= 0 { cfg.TTL = 20 * time.Second }
    cfg.DefaultCurrency = strings.ToLower(cfg.DefaultCurrency)
    cfg.PopularSymbols = NormalizeSymbols(cfg.PopularSymbols, cfg.MaxSymbols)

    s := &Service{cfg: cfg, stocks: stocks, cryptos: cryptos, now: time.Now}
    s.quotes = &cache.Series[provider.Quote]{Name: "stocks", TTL: cfg.TTL, MaxItems: cfg.MaxItems, FillTimeout: cfg.FillTimeout}
    s.coins = &cache.Series[provider.Coin]{Name: "cryptos", TTL: cfg.TTL, MaxItems: cfg.MaxItems, FillTimeout: cfg.FillTimeout}
    s.history = &cache.Series[provider.Point]{Name: "history", TTL: cfg.TTL, MaxItems: cfg.MaxItems, FillTimeout: cfg.FillTimeout}
    for _, opt := range opts { opt(s) }
    clock := func() time.Time { return s.now() }
    s.quotes.Clock, s.coins.Clock, s.history.Clock = clock, clock, clock
    return s
}

// Stocks returns quotes for symbols, or for the popular list when symbols is empty.
func (s *Service) Stocks(ctx context.Context, symbols []string) ([]provider.Quote, cache.Source) {
    symbols = NormalizeSymbols(symbols, s.cfg.MaxSymbols)
    if len(symbols) == 0 { symbols = s.cfg.PopularSymbols }
    key := "batch:" + strings.Join(symbols, ",")
    return s.quotes.Get(ctx, key,
        func(ctx context.Context) ([]provider.Quote, error) { return s.stocks.Quotes(ctx, symbols) },
        func() []provider.Quote { return fallback.Stocks(symbols) })
}

// Stock returns the quote for one symbol.
func (s *Service) Stock(ctx context.Context, symbol string) (provider.Quote, cache.Source) {
    symbol = normalizeSymbol(symbol)
    out, src := s.quotes.Get(ctx, "symbol:"+symbol,
        func(ctx context.Context) ([]provider.Quote, error) {
            q, err := s.stocks.Quote(ctx, symbol)
            if err != nil { return nil, err }
            return []provider.Quote{q}, nil
        },
        func() []provider.Quote { return []provider.Quote{fallback.Stock(symbol)} })
    if len(out) == 0 {
        return fallback.Stock(symbol), cache.SourceFallback
    }
    return out[0], src
}

// Cryptos returns the top coins by market cap. An empty currency or a
// non-positive limit uses the defaults; limit is capped at MaxLimit.
func (s *Service) Cryptos(ctx context.Context, currency string, limit int) ([]provider.Coin, cache.Source) {
    currency = s.currency(currency)
    limit = s.ClampLimit(limit)
    key := currency + ":" + strconv.Itoa(limit)
    return s.coins.Get(ctx, key,
        func(ctx context.Context) ([]provider.Coin, error) { return s.cryptos.Markets(ctx, currency, limit) },
        func() []provider.Coin { return fallback.Cryptos(limit) })
}

// History returns daily points for the last days. Stock history has no
// live source and is always synthesized.
func (s *Service) History(ctx context.Context, kind Kind, id, currency string, days int) ([]provider.Point, cache.Source) {
    days = s.ClampDays(days)
    if kind == KindStock {
        sym := normalizeSymbol(id)
        return fallback.History(days, fallback.StockBase(sym), s.now()), cache.SourceFallback
    }

    id = strings.ToLower(strings.TrimSpace(id))
    currency = s.currency(currency)
    key := fmt.Sprintf("%s:%s:%s:%d", kind, id, currency, days)
    return s.history.Get(ctx, key,
        func(ctx context.Context) ([]provider.Point, error) { return s.cryptos.History(ctx, id, currency, days) },
        func() []provider.Point { return fallback.History(days, fallback.CoinBase(id), s.now()) })
}

// Reset drops every cached series.
func (s *Service) Reset() {
    s.quotes.Reset()
    s.coins.Reset()
    s.history.Reset()
}

func (s *Service) currency(c string) string {
    c = strings.ToLower(strings.TrimSpace(c))
    if c == "" { return s.cfg.DefaultCurrency }
    return c
}

// ClampLimit maps non-positive values to DefaultLimit and caps at MaxLimit.
func (s *Service) ClampLimit(limit int) int {
    if limit <= 0 { return min(s.cfg.DefaultLimit, s.cfg.MaxLimit) }
    return min(limit, s.cfg.MaxLimit)
}

// ClampDays bounds days to [1, MaxDays].
func (s *Service) ClampDays(days int) int {
    return max(1, min(days, s.cfg.MaxDays))
}

// NormalizeSymbols upper-cases, trims and de-duplicates symbols, keeping the
// first occurrence order, and keeps at most limit of them (limit <= 0: no cap).
// Entries may themselves be comma separated.
func NormalizeSymbols(symbols []string, limit int) []string {
    out := make([]string, 0, len(symbols))
    seen := make(map[string]struct{}, len(symbols))
    for _, raw := range symbols {
        for _, part := range strings.Split(raw, ",") {
            sym := normalizeSymbol(part)
            if sym == "" { continue }
            if _, dup := seen[sym]; dup { continue }
            seen[sym] = struct{}{}
            out = append(out, sym)
            if limit > 0 && len(out) == limit { return out }
        }
    }
    return out
}

func normalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
