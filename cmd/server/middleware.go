package main

import (
    "compress/gzip"
    "context"
    "io"
    "net/http"
    "strings"
    "sync"
    "time"

    "github.com/go-chi/chi/v5/middleware"
    "github.com/google/uuid"
    "go.uber.org/zap"
)

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// withRequestID reuses an inbound X-Request-ID or generates a UUID.
func withRequestID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := strings.TrimSpace(r.Header.Get(requestIDHeader))
        if id == "" || len(id) > 128 {
            id = uuid.NewString()
        }
        w.Header().Set(requestIDHeader, id)
        ctx := context.WithValue(r.Context(), requestIDContextKey{}, id)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

func requestID(ctx context.Context) string {
    id, _ := ctx.Value(requestIDContextKey{}).(string)
    return id
}

// withAccessLog writes one line per request.
func withAccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            start := time.Now()
            ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
            next.ServeHTTP(ww, r)
            status := ww.Status()
            if status == 0 { status = http.StatusOK }
            logger.Info("request",
                zap.String("method", r.Method),
                zap.String("path", r.URL.Path),
                zap.Int("status", status),
                zap.Duration("duration", time.Since(start)),
                zap.String("request_id", requestID(r.Context())))
        })
    }
}

// withTimeout bounds the request context. Handlers answer with fallback
// data when it fires, so no status is written here.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        if d <= 0 { return next }
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ctx, cancel := context.WithTimeout(r.Context(), d)
            defer cancel()
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Request-ID")
        w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID,X-Data-Source")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        w.Header().Del("Content-Length")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(logger *zap.Logger) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            defer func() {
                if rec := recover(); rec != nil {
                    if rec == http.ErrAbortHandler { panic(rec) }
                    logger.Error("handler panic",
                        zap.Any("panic", rec),
                        zap.String("path", r.URL.Path),
                        zap.String("request_id", requestID(r.Context())))
                    writeError(w, http.StatusInternalServerError, "internal server error")
                }
            }()
            next.ServeHTTP(w, r)
        })
    }
}
