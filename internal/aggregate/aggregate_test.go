package aggregate

import (
    "context"
    "errors"
    "reflect"
    "sync/atomic"
    "testing"
    "time"

    "marketdata/internal/provider"
    "marketdata/internal/provider/cache"
)

type fakeStocks struct {
    calls atomic.Int32
    err   error
}

func (f *fakeStocks) Quote(_ context.Context, sym string) (provider.Quote, error) {
    f.calls.Add(1)
    if f.err != nil { return provider.Quote{}, f.err }
    return provider.Quote{Symbol: sym, Name: sym + " Inc", Price: 10, Source: "live"}, nil
}

func (f *fakeStocks) Quotes(_ context.Context, syms []string) ([]provider.Quote, error) {
    f.calls.Add(1)
    if f.err != nil { return nil, f.err }
    out := make([]provider.Quote, 0, len(syms))
    for _, s := range syms { out = append(out, provider.Quote{Symbol: s, Price: 10, Source: "live"}) }
    return out, nil
}

type fakeCryptos struct {
    calls    atomic.Int32
    err      error
    gotLimit int
    gotCcy   string
}

func (f *fakeCryptos) Markets(_ context.Context, ccy string, limit int) ([]provider.Coin, error) {
    f.calls.Add(1)
    f.gotCcy, f.gotLimit = ccy, limit
    if f.err != nil { return nil, f.err }
    return []provider.Coin{{ID: "bitcoin", CurrentPrice: 1}}, nil
}

func (f *fakeCryptos) History(_ context.Context, _, _ string, days int) ([]provider.Point, error) {
    f.calls.Add(1)
    if f.err != nil { return nil, f.err }
    return []provider.Point{{Time: 1, Value: 2}}, nil
}

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newService(st *fakeStocks, cr *fakeCryptos) *Service {
    return New(Config{PopularSymbols: []string{"aapl", "msft"}}, st, cr, WithClock(func() time.Time { return fixedNow }))
}

func TestStocks_UsesPopularListAndCaches(t *testing.T) {
    st := &fakeStocks{}
    s := newService(st, &fakeCryptos{})

    first, src := s.Stocks(t.Context(), nil)
    if src != cache.SourceLive || len(first) != 2 || first[0].Symbol != "AAPL" {
        t.Fatalf("unexpected first result: %s %+v", src, first)
    }
    second, src := s.Stocks(t.Context(), []string{})
    if src != cache.SourceCache || !reflect.DeepEqual(first, second) {
        t.Fatalf("expected identical cached payload, got %s %+v", src, second)
    }
    if n := st.calls.Load(); n != 1 {
        t.Fatalf("want 1 upstream call, got %d", n)
    }
}

func TestStocks_FallbackWhenUpstreamFails(t *testing.T) {
    st := &fakeStocks{err: errors.New("down")}
    s := newService(st, &fakeCryptos{})

    out, src := s.Stocks(t.Context(), []string{"aapl", "UNKNOWN"})
    if src != cache.SourceFallback || len(out) != 2 {
        t.Fatalf("unexpected fallback result: %s %+v", src, out)
    }
    if out[0].Name != "Apple Inc" || out[1].Symbol != "UNKNOWN" || out[1].Price != 0 {
        t.Fatalf("unexpected fallback records: %+v", out)
    }

    again, _ := s.Stocks(t.Context(), []string{"AAPL", "unknown"})
    if !reflect.DeepEqual(out, again) {
        t.Fatalf("fallback not cached: %+v vs %+v", out, again)
    }
    if n := st.calls.Load(); n != 1 {
        t.Fatalf("want 1 upstream call, got %d", n)
    }
}

func TestStock_Single(t *testing.T) {
    s := newService(&fakeStocks{}, &fakeCryptos{})
    q, src := s.Stock(t.Context(), " nvda ")
    if src != cache.SourceLive || q.Symbol != "NVDA" || q.Name != "NVDA Inc" {
        t.Fatalf("unexpected quote: %s %+v", src, q)
    }
}

func TestStock_Placeholder(t *testing.T) {
    s := newService(&fakeStocks{err: errors.New("down")}, &fakeCryptos{})
    q, src := s.Stock(t.Context(), "zzzz")
    if src != cache.SourceFallback || q.Symbol != "ZZZZ" || q.Name != "ZZZZ" || q.Price != 0 {
        t.Fatalf("unexpected placeholder: %s %+v", src, q)
    }
}

func TestCryptos_DefaultsAndClamp(t *testing.T) {
    cr := &fakeCryptos{}
    s := newService(&fakeStocks{}, cr)

    s.Cryptos(t.Context(), "", 0)
    if cr.gotCcy != "usd" || cr.gotLimit != 20 {
        t.Fatalf("defaults not applied: %q %d", cr.gotCcy, cr.gotLimit)
    }
    s.Cryptos(t.Context(), "EUR", 10_000)
    if cr.gotCcy != "eur" || cr.gotLimit != 250 {
        t.Fatalf("clamp not applied: %q %d", cr.gotCcy, cr.gotLimit)
    }
}

func TestCryptos_KeyedByCurrencyAndLimit(t *testing.T) {
    cr := &fakeCryptos{}
    s := newService(&fakeStocks{}, cr)
    s.Cryptos(t.Context(), "usd", 10)
    s.Cryptos(t.Context(), "USD", 10)
    s.Cryptos(t.Context(), "usd", 11)
    s.Cryptos(t.Context(), "eur", 10)
    if n := cr.calls.Load(); n != 3 {
        t.Fatalf("want 3 upstream calls, got %d", n)
    }
}

func TestCryptos_Fallback(t *testing.T) {
    s := newService(&fakeStocks{}, &fakeCryptos{err: errors.New("down")})
    out, src := s.Cryptos(t.Context(), "usd", 5)
    if src != cache.SourceFallback || len(out) != 5 {
        t.Fatalf("unexpected fallback: %s %d", src, len(out))
    }
}

func TestHistory_StockIsSynthetic(t *testing.T) {
    cr := &fakeCryptos{}
    s := newService(&fakeStocks{}, cr)
    out, src := s.History(t.Context(), KindStock, "aapl", "", 30)
    if src != cache.SourceFallback || len(out) != 30 {
        t.Fatalf("unexpected series: %s %d", src, len(out))
    }
    for i := 1; i < len(out); i++ {
        if out[i].Time <= out[i-1].Time {
            t.Fatalf("time not increasing at %d", i)
        }
    }
    if cr.calls.Load() != 0 {
        t.Fatalf("stock history must not reach the crypto source")
    }
}

func TestHistory_CryptoFailureSynthesizesRequestedLength(t *testing.T) {
    s := newService(&fakeStocks{}, &fakeCryptos{err: errors.New("down")})
    out, src := s.History(t.Context(), KindCrypto, "bitcoin", "", 1000)
    if src != cache.SourceFallback || len(out) != 365 {
        t.Fatalf("unexpected series: %s %d", src, len(out))
    }
    out, _ = s.History(t.Context(), KindCrypto, "bitcoin", "", 0)
    if len(out) != 1 {
        t.Fatalf("want 1 point, got %d", len(out))
    }
}

func TestHistory_CryptoLive(t *testing.T) {
    s := newService(&fakeStocks{}, &fakeCryptos{})
    out, src := s.History(t.Context(), KindCrypto, "bitcoin", "", 7)
    if src != cache.SourceLive || len(out) != 1 {
        t.Fatalf("unexpected series: %s %+v", src, out)
    }
}

func TestParseKind(t *testing.T) {
    for in, want := range map[string]Kind{"stock": KindStock, "Stocks": KindStock, "crypto": KindCrypto, " CRYPTOS ": KindCrypto} {
        got, err := ParseKind(in)
        if err != nil || got != want {
            t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
        }
    }
    if _, err := ParseKind("bond"); err == nil {
        t.Fatalf("expected error for unknown kind")
    }
}

func TestNormalizeSymbols(t *testing.T) {
    got := NormalizeSymbols([]string{" aapl,msft", "AAPL", "", "tsla , nvda"}, 3)
    want := []string{"AAPL", "MSFT", "TSLA"}
    if !reflect.DeepEqual(got, want) {
        t.Fatalf("want %v, got %v", want, got)
    }
    if got := NormalizeSymbols(nil, 0); len(got) != 0 {
        t.Fatalf("want empty, got %v", got)
    }
}

func TestReset(t *testing.T) {
    st := &fakeStocks{}
    s := newService(st, &fakeCryptos{})
    s.Stocks(t.Context(), nil)
    s.Reset()
    s.Stocks(t.Context(), nil)
    if n := st.calls.Load(); n != 2 {
        t.Fatalf("want 2 upstream calls after reset, got %d", n)
    }
}
