// Package app assembles the market data graph from configuration.
package app

import (
    "fmt"

    "go.uber.org/zap"

    "marketdata/internal/aggregate"
    "marketdata/internal/config"
    "marketdata/internal/httpx"
    "marketdata/internal/provider/coingecko"
    "marketdata/internal/provider/coingeckoadapter"
    "marketdata/internal/provider/finnhub"
    "marketdata/internal/provider/finnhubadapter"
    "marketdata/internal/provider/ratelimit"
)

type App struct {
    Config  config.Config
    Logger  *zap.Logger
    Limiter *ratelimit.Limiter
    Stocks  *finnhubadapter.Adapter
    Cryptos *coingeckoadapter.Adapter
    Service *aggregate.Service
}

// New wires limiter, clients, adapters and the cached service.
// Process-wide state (limiter windows, caches) starts empty here.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
    if logger == nil { logger = zap.NewNop() }

    limiter := ratelimit.New(ratelimit.Config{
        Window:            cfg.Stock.Window,
        MaxCalls:          cfg.Stock.MaxCallsPerWindow,
        SafetyBuffer:      cfg.Stock.SafetyBuffer,
        RejectionCooldown: cfg.Stock.RejectionCooldown,
    }, ratelimit.WithLogger(logger.Named("ratelimit")))

    stockClient, err := finnhub.NewClient(cfg.Stock.APIKey,
        finnhub.WithBaseURL(cfg.Stock.BaseURL),
        finnhub.WithHTTPClient(httpx.New(cfg.Stock.Timeout)),
        finnhub.WithTimeout(cfg.Stock.Timeout))
    if err != nil {
        return nil, fmt.Errorf("stock client: %w", err)
    }
    stocks := finnhubadapter.New(finnhubadapter.Config{MaxConcurrency: cfg.Stock.MaxConcurrency},
        stockClient, limiter, finnhubadapter.WithLogger(logger.Named("finnhub")))

    cryptoClient, err := coingecko.NewClient(
        coingecko.WithBaseURL(cfg.Crypto.BaseURL),
        coingecko.WithHTTPClient(httpx.New(cfg.Crypto.Timeout)),
        coingecko.WithTimeout(cfg.Crypto.Timeout),
        coingecko.WithAPIKey(cfg.Crypto.APIKey, cfg.Crypto.APIKeyHeader))
    if err != nil {
        return nil, fmt.Errorf("crypto client: %w", err)
    }
    cryptos := coingeckoadapter.New(coingeckoadapter.Config{
        MaxAttempts:      cfg.Crypto.MaxAttempts,
        Schedule:         cfg.Crypto.Backoff,
        KeylessPerMinute: cfg.Crypto.KeylessPerMinute,
        KeyedPerMinute:   cfg.Crypto.KeyedPerMinute,
    }, cryptoClient, coingeckoadapter.WithLogger(logger.Named("coingecko")))

    svc := aggregate.New(aggregate.Config{
        PopularSymbols:  cfg.Stock.Symbols,
        DefaultCurrency: cfg.Crypto.DefaultCurrency,
        DefaultLimit:    cfg.Crypto.DefaultLimit,
        MaxLimit:        cfg.Crypto.MaxLimit,
        TTL:             cfg.Cache.TTL,
        MaxItems:        cfg.Cache.MaxItems,
        FillTimeout:     cfg.Server.RequestTimeout,
    }, stocks, cryptos, aggregate.WithLogger(logger.Named("cache")))

    return &App{
        Config:  cfg,
        Logger:  logger,
        Limiter: limiter,
        Stocks:  stocks,
        Cryptos: cryptos,
        Service: svc,
    }, nil
}
