// Package fallback supplies the last-resort dataset served when providers
// are unavailable. Nothing here touches the network.
package fallback

import (
    "math"
    "math/rand/v2"
    "strings"
    "time"

    "marketdata/internal/provider"
)

// Source labels every record produced here.
const Source = "fallback"

var stocks = []provider.Quote{
    {Symbol: "AAPL", Name: "Apple Inc", Price: 178.72, Change: 1.23, ChangePercent: 0.69, High: 179.43, Low: 176.21, Open: 177.09, PreviousClose: 177.49, MarketCap: 2790000, Sector: "Technology"},
    {Symbol: "MSFT", Name: "Microsoft Corp", Price: 374.58, Change: 2.91, ChangePercent: 0.78, High: 375.9, Low: 370.12, Open: 371.01, PreviousClose: 371.67, MarketCap: 2780000, Sector: "Technology"},
    {Symbol: "GOOGL", Name: "Alphabet Inc", Price: 139.69, Change: -0.64, ChangePercent: -0.46, High: 141.1, Low: 138.9, Open: 140.2, PreviousClose: 140.33, MarketCap: 1750000, Sector: "Media"},
    {Symbol: "AMZN", Name: "Amazon.com Inc", Price: 151.94, Change: 1.1, ChangePercent: 0.73, High: 152.6, Low: 149.8, Open: 150.3, PreviousClose: 150.84, MarketCap: 1570000, Sector: "Retail"},
    {Symbol: "TSLA", Name: "Tesla Inc", Price: 248.48, Change: -4.02, ChangePercent: -1.59, High: 254.1, Low: 246.3, Open: 252.9, PreviousClose: 252.5, MarketCap: 790000, Sector: "Automobiles"},
    {Symbol: "META", Name: "Meta Platforms Inc", Price: 353.96, Change: 3.4, ChangePercent: 0.97, High: 355.2, Low: 349.1, Open: 350.5, PreviousClose: 350.56, MarketCap: 910000, Sector: "Media"},
    {Symbol: "NVDA", Name: "NVIDIA Corp", Price: 495.22, Change: 7.81, ChangePercent: 1.6, High: 498.7, Low: 486.3, Open: 488.1, PreviousClose: 487.41, MarketCap: 1220000, Sector: "Semiconductors"},
    {Symbol: "NFLX", Name: "Netflix Inc", Price: 486.88, Change: -2.15, ChangePercent: -0.44, High: 491.4, Low: 484.2, Open: 489.9, PreviousClose: 489.03, MarketCap: 213000, Sector: "Media"},
    {Symbol: "AMD", Name: "Advanced Micro Devices Inc", Price: 138.58, Change: 2.05, ChangePercent: 1.5, High: 139.9, Low: 135.7, Open: 136.2, PreviousClose: 136.53, MarketCap: 224000, Sector: "Semiconductors"},
    {Symbol: "INTC", Name: "Intel Corp", Price: 47.4, Change: 0.32, ChangePercent: 0.68, High: 47.9, Low: 46.8, Open: 47.1, PreviousClose: 47.08, MarketCap: 200000, Sector: "Semiconductors"},
}

var coins = []provider.Coin{
    {ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 43250, MarketCap: 846000000000, PriceChangePercentage24h: 1.42, TotalVolume: 21500000000},
    {ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 2280, MarketCap: 274000000000, PriceChangePercentage24h: 0.87, TotalVolume: 9800000000},
    {ID: "tether", Symbol: "usdt", Name: "Tether", CurrentPrice: 1, MarketCap: 91000000000, PriceChangePercentage24h: 0.01, TotalVolume: 38000000000},
    {ID: "binancecoin", Symbol: "bnb", Name: "BNB", CurrentPrice: 312.4, MarketCap: 48000000000, PriceChangePercentage24h: -0.35, TotalVolume: 820000000},
    {ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: 98.6, MarketCap: 42000000000, PriceChangePercentage24h: 3.1, TotalVolume: 2400000000},
    {ID: "ripple", Symbol: "xrp", Name: "XRP", CurrentPrice: 0.62, MarketCap: 33600000000, PriceChangePercentage24h: -1.2, TotalVolume: 1100000000},
    {ID: "usd-coin", Symbol: "usdc", Name: "USDC", CurrentPrice: 1, MarketCap: 24500000000, PriceChangePercentage24h: 0, TotalVolume: 5200000000},
    {ID: "cardano", Symbol: "ada", Name: "Cardano", CurrentPrice: 0.58, MarketCap: 20400000000, PriceChangePercentage24h: 2.05, TotalVolume: 480000000},
    {ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", CurrentPrice: 0.089, MarketCap: 12700000000, PriceChangePercentage24h: -0.8, TotalVolume: 560000000},
    {ID: "avalanche-2", Symbol: "avax", Name: "Avalanche", CurrentPrice: 36.2, MarketCap: 13300000000, PriceChangePercentage24h: 4.4, TotalVolume: 690000000},
}

// Stocks returns one record per requested symbol: the static record when the
// symbol is known, otherwise a zero-valued placeholder. No symbols means all
// static records.
func Stocks(symbols []string) []provider.Quote {
    if len(symbols) == 0 {
        out := make([]provider.Quote, 0, len(stocks))
        for _, q := range stocks { out = append(out, stamp(q)) }
        return out
    }
    out := make([]provider.Quote, 0, len(symbols))
    for _, s := range symbols {
        out = append(out, Stock(s))
    }
    return out
}

// Stock returns the static record for symbol or a placeholder.
func Stock(symbol string) provider.Quote {
    symbol = strings.ToUpper(strings.TrimSpace(symbol))
    for _, q := range stocks {
        if q.Symbol == symbol { return stamp(q) }
    }
    return stamp(provider.Quote{Symbol: symbol, Name: symbol})
}

func stamp(q provider.Quote) provider.Quote {
    q.Source = Source
    q.ReceivedAt = time.Now().UTC()
    return q
}

// Cryptos returns up to limit static coins. Prices are the USD reference
// values regardless of currency.
func Cryptos(limit int) []provider.Coin {
    if limit <= 0 || limit > len(coins) { limit = len(coins) }
    out := make([]provider.Coin, limit)
    copy(out, coins[:limit])
    for i := range out { out[i].Category = "Cryptocurrency" }
    return out
}

// Seed fixes the random walk so every process produces the same history.
const Seed = 0x5eed_f00d

// History synthesizes points daily samples ending at the UTC day containing
// now. The value at index i depends only on i and base, so repeated calls
// agree; only the timestamps move with now. Non-positive base uses 100.
func History(points int, base float64, now time.Time) []provider.Point {
    if points <= 0 { return []provider.Point{} }
    if base <= 0 || math.IsNaN(base) || math.IsInf(base, 0) { base = 100 }

    rng := rand.New(rand.NewPCG(Seed, Seed>>1))
    end := now.UTC().Truncate(24 * time.Hour)
    start := end.Add(-time.Duration(points-1) * 24 * time.Hour)

    out := make([]provider.Point, points)
    v := base
    for i := range out {
        // Daily move of at most ±2.5%.
        v *= 1 + (rng.Float64()-0.5)*0.05
        out[i] = provider.Point{
            Time:  start.Add(time.Duration(i) * 24 * time.Hour).Unix(),
            Value: math.Round(v*1e6) / 1e6,
        }
    }
    return out
}

// StockBase and CoinBase give a plausible starting price for History.
func StockBase(symbol string) float64 {
    symbol = strings.ToUpper(strings.TrimSpace(symbol))
    for _, q := range stocks {
        if q.Symbol == symbol { return q.Price }
    }
    return 100
}

func CoinBase(id string) float64 {
    id = strings.ToLower(strings.TrimSpace(id))
    for _, c := range coins {
        if c.ID == id { return c.CurrentPrice }
    }
    return 100
}
