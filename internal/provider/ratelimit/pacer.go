package ratelimit

import (
    "context"
    "time"

    "golang.org/x/time/rate"
)

// Pacer spaces calls to a provider that publishes a per-minute quota but
// reports no per-credential state, such as a keyless public tier.
// A nil Pacer never waits.
type Pacer struct {
    l *rate.Limiter
}

// NewPacer allows perMinute calls per minute with the given burst.
// perMinute <= 0 disables pacing.
func NewPacer(perMinute, burst int) *Pacer {
    if perMinute <= 0 { return nil }
    if burst <= 0 { burst = 1 }
    return &Pacer{l: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)}
}

// Wait blocks until one call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
    if p == nil || p.l == nil { return nil }
    return p.l.Wait(ctx)
}
