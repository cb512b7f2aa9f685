package main

import (
    "context"
    "encoding/json"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/go-chi/chi/v5"
    "go.uber.org/zap"

    "marketdata/internal/aggregate"
    "marketdata/internal/provider"
    "marketdata/internal/provider/cache"
    "marketdata/internal/provider/ratelimit"
)

// maxSymbols caps ?symbols on the batch endpoint.
const maxSymbols = 50

// defaultDays is used when ?days is absent.
const defaultDays = 30

type marketService interface {
    Stocks(ctx context.Context, symbols []string) ([]provider.Quote, cache.Source)
    Stock(ctx context.Context, symbol string) (provider.Quote, cache.Source)
    Cryptos(ctx context.Context, currency string, limit int) ([]provider.Coin, cache.Source)
    History(ctx context.Context, kind aggregate.Kind, id, currency string, days int) ([]provider.Point, cache.Source)
}

type limiterStatus interface {
    Statuses() map[string]ratelimit.Status
}

type stocksResponse struct {
    Success bool             `json:"success"`
    Data    []provider.Quote `json:"data"`
}

type stockResponse struct {
    Success bool           `json:"success"`
    Data    provider.Quote `json:"data"`
}

type historyResponse struct {
    Series []provider.Point `json:"series"`
}

type rateLimitResponse struct {
    Credentials map[string]ratelimit.Status `json:"credentials"`
}

type errorResponse struct {
    Success bool   `json:"success"`
    Error   string `json:"error"`
}

type handlers struct {
    svc     marketService
    limiter limiterStatus
    logger  *zap.Logger
}

func newRouter(svc marketService, limiter limiterStatus, logger *zap.Logger, requestTimeout time.Duration) http.Handler {
    h := &handlers{svc: svc, limiter: limiter, logger: logger}

    r := chi.NewRouter()
    r.Use(withRequestID, withAccessLog(logger), withJSONHeaders, withGzip, recoverPanic(logger), limitBody, withTimeout(requestTimeout))

    r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    r.Route("/api", func(r chi.Router) {
        r.Get("/stocks", h.getStocks)
        r.Get("/stocks/{symbol}", h.getStock)
        r.Get("/cryptos", h.getCryptos)
        r.Get("/history/{kind}/{id}", h.getHistory)
        r.Get("/ratelimit", h.getRateLimit)
    })
    r.NotFound(func(w http.ResponseWriter, r *http.Request) {
        writeError(w, http.StatusNotFound, "not found")
    })
    r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
    })
    return r
}

func (h *handlers) getStocks(w http.ResponseWriter, r *http.Request) {
    symbols := splitCSV(r.URL.Query().Get("symbols"))
    if len(symbols) > maxSymbols {
        symbols = symbols[:maxSymbols]
    }
    quotes, src := h.svc.Stocks(r.Context(), symbols)
    writeJSON(w, src, stocksResponse{Success: true, Data: quotes})
}

func (h *handlers) getStock(w http.ResponseWriter, r *http.Request) {
    symbol := strings.TrimSpace(chi.URLParam(r, "symbol"))
    if symbol == "" {
        writeError(w, http.StatusBadRequest, "missing symbol")
        return
    }
    quote, src := h.svc.Stock(r.Context(), symbol)
    writeJSON(w, src, stockResponse{Success: true, Data: quote})
}

func (h *handlers) getCryptos(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    limit, ok := intParam(q.Get("limit"))
    if !ok {
        writeError(w, http.StatusBadRequest, "limit must be an integer")
        return
    }
    coins, src := h.svc.Cryptos(r.Context(), q.Get("currency"), limit)
    writeJSON(w, src, coins)
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
    kind, err := aggregate.ParseKind(chi.URLParam(r, "kind"))
    if err != nil {
        writeError(w, http.StatusBadRequest, err.Error())
        return
    }
    q := r.URL.Query()
    days, ok := intParam(q.Get("days"))
    if !ok {
        writeError(w, http.StatusBadRequest, "days must be an integer")
        return
    }
    if days == 0 { days = defaultDays }
    points, src := h.svc.History(r.Context(), kind, chi.URLParam(r, "id"), q.Get("currency"), days)
    writeJSON(w, src, historyResponse{Series: points})
}

func (h *handlers) getRateLimit(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, "", rateLimitResponse{Credentials: h.limiter.Statuses()})
}

// intParam parses an optional integer. Empty yields 0.
func intParam(s string) (int, bool) {
    s = strings.TrimSpace(s)
    if s == "" { return 0, true }
    n, err := strconv.Atoi(s)
    return n, err == nil
}

func writeJSON(w http.ResponseWriter, src cache.Source, v any) {
    if src != "" {
        w.Header().Set("X-Data-Source", string(src))
    }
    w.WriteHeader(http.StatusOK)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    w.Header().Set("Content-Type", "application/json; charset=utf-8")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(errorResponse{Success: false, Error: msg})
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
