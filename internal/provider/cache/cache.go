package cache

import (
    "context"
    "errors"
    "slices"
    "sync"
    "time"

    "go.uber.org/zap"
    "golang.org/x/sync/singleflight"

    "marketdata/internal/provider"
)

// Source tells the caller where a payload came from.
type Source string

const (
    SourceCache    Source = "cache"
    SourceLive     Source = "live"
    SourceFallback Source = "fallback"
)

// FetchFunc loads a fresh payload from upstream.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// FallbackFunc builds the static payload served when FetchFunc fails.
type FallbackFunc[T any] func() []T

// entry stores one payload with its write time.
type entry[T any] struct {
    writtenAt time.Time
    records   []T
    source    Source
}

// Series caches payloads of one logical data series per normalized key.
// Concurrent misses for the same key share one upstream call. A failed
// fetch is answered with the fallback payload, which is cached under the
// same TTL so an outage is not retried once per request.
type Series[T any] struct {
    Name     string
    TTL      time.Duration
    MaxItems int
    // FillTimeout bounds one upstream fill. Zero means the fetch's own deadlines only.
    FillTimeout time.Duration
    Clock       func() time.Time
    Logger      *zap.Logger

    mu    sync.RWMutex
    items map[string]entry[T] // key: normalized request signature
    group singleflight.Group
}

func (s *Series[T]) now() time.Time {
    if s.Clock != nil { return s.Clock() }
    return time.Now()
}

func (s *Series[T]) logger() *zap.Logger {
    if s.Logger != nil { return s.Logger }
    return zap.NewNop()
}

// lookup returns the entry for key while it is younger than TTL.
func (s *Series[T]) lookup(key string) (entry[T], bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    e, ok := s.items[key]
    if !ok || s.now().Sub(e.writtenAt) >= s.TTL {
        return entry[T]{}, false
    }
    return e, true
}

// Get returns the payload for key. It never fails: on a miss it calls fetch,
// and on a fetch error or empty payload it serves and caches fallback.
// A caller whose ctx ends while waiting gets fallback immediately; the fill
// itself keeps running and still populates the cache.
func (s *Series[T]) Get(ctx context.Context, key string, fetch FetchFunc[T], fallback FallbackFunc[T]) ([]T, Source) {
    if e, ok := s.lookup(key); ok {
        return slices.Clone(e.records), SourceCache
    }

    ch := s.group.DoChan(key, func() (any, error) {
        // Another fill may have completed between lookup and DoChan.
        if e, ok := s.lookup(key); ok {
            return e, nil
        }
        return s.fill(context.WithoutCancel(ctx), key, fetch, fallback), nil
    })

    select {
    case res := <-ch:
        e := res.Val.(entry[T])
        return slices.Clone(e.records), e.source
    case <-ctx.Done():
        return fallback(), SourceFallback
    }
}

func (s *Series[T]) fill(ctx context.Context, key string, fetch FetchFunc[T], fallback FallbackFunc[T]) entry[T] {
    if s.FillTimeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, s.FillTimeout)
        defer cancel()
    }

    records, err := fetch(ctx)
    if err == nil && len(records) == 0 {
        err = provider.ErrEmptyPayload
    }

    e := entry[T]{writtenAt: s.now(), records: records, source: SourceLive}
    if err != nil {
        s.logger().Warn("serving fallback data",
            zap.String("series", s.Name),
            zap.String("key", key),
            zap.Error(errors.Join(provider.ErrAggregationExhausted, err)))
        e.records, e.source = fallback(), SourceFallback
    } else {
        s.logger().Debug("cache refreshed",
            zap.String("series", s.Name),
            zap.String("key", key),
            zap.Int("records", len(records)))
    }
    s.store(key, e)
    return e
}

func (s *Series[T]) store(key string, e entry[T]) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.items == nil { s.items = make(map[string]entry[T]) }
    s.items[key] = e

    // best-effort cap cache size
    if s.MaxItems > 0 && len(s.items) > s.MaxItems {
        // remove expired first, then arbitrary
        now := s.now()
        for k, v := range s.items {
            if len(s.items) <= s.MaxItems { break }
            if k != key && now.Sub(v.writtenAt) >= s.TTL { delete(s.items, k) }
        }
        for k := range s.items {
            if len(s.items) <= s.MaxItems { break }
            if k != key { delete(s.items, k) }
        }
    }
}

// Len reports how many keys are stored, expired or not.
func (s *Series[T]) Len() int {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return len(s.items)
}

// Reset drops every entry.
func (s *Series[T]) Reset() {
    s.mu.Lock()
    s.items = nil
    s.mu.Unlock()
}
