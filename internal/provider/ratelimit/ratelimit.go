package ratelimit

import (
    "context"
    "fmt"
    "sync"
    "time"

    "go.uber.org/zap"
)

// Config controls the sliding window limiter.
type Config struct {
    // Window is the trailing interval calls are counted over.
    Window time.Duration
    // MaxCalls is the provider's published limit per Window.
    MaxCalls int
    // SafetyBuffer is subtracted from MaxCalls to get the effective ceiling.
    SafetyBuffer int
    // RejectionCooldown is the minimum wait after an observed 429,
    // independent of the window count.
    RejectionCooldown time.Duration
}

// Status is a read-only snapshot for one credential.
type Status struct {
    RecentCalls int     `json:"recentCalls"`
    MaxAllowed  int     `json:"maxAllowed"`
    Remaining   int     `json:"remaining"`
    Percentage  float64 `json:"percentage"`
    IsAvailable bool    `json:"isAvailable"`
}

// keyStatus is the per-credential call log.
type keyStatus struct {
    calls   []time.Time // ascending
    last429 time.Time
}

// Limiter keeps per-credential sliding window accounting. The zero value is
// not usable; construct with New. State starts empty and lives until Reset.
type Limiter struct {
    cfg    Config
    clock  func() time.Time
    logger *zap.Logger

    mu   sync.Mutex
    keys map[string]*keyStatus
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
    return func(l *Limiter) { l.clock = clock }
}

// WithLogger sets the logger used for wait and rejection events.
func WithLogger(logger *zap.Logger) Option {
    return func(l *Limiter) { l.logger = logger }
}

func New(cfg Config, opts ...Option) *Limiter {
    if cfg.Window <= 0 { cfg.Window = time.Minute }
    if cfg.MaxCalls <= 0 { cfg.MaxCalls = 60 }
    if cfg.SafetyBuffer < 0 { cfg.SafetyBuffer = 0 }
    if cfg.RejectionCooldown < 0 { cfg.RejectionCooldown = 0 }
    l := &Limiter{
        cfg:    cfg,
        clock:  time.Now,
        logger: zap.NewNop(),
        keys:   make(map[string]*keyStatus),
    }
    for _, opt := range opts {
        opt(l)
    }
    return l
}

// Ceiling is MaxCalls minus SafetyBuffer, never below one.
func (l *Limiter) Ceiling() int {
    c := l.cfg.MaxCalls - l.cfg.SafetyBuffer
    if c < 1 { c = 1 }
    return c
}

// Admit blocks until a call for credential is safe, then records it.
// It fails at once when the required wait would outlast ctx's deadline.
// The slot is taken under the same lock that checked it, so two callers
// racing for the last slot cannot both proceed. After every wait the
// state is checked again because another caller may have taken the slot.
func (l *Limiter) Admit(ctx context.Context, credential string) error {
    for {
        l.mu.Lock()
        now := l.clock()
        ks := l.status(credential)
        l.prune(ks, now)

        var wait time.Duration
        if !ks.last429.IsZero() {
            if until := ks.last429.Add(l.cfg.RejectionCooldown); now.Before(until) {
                wait = until.Sub(now)
            }
        }
        if wait == 0 && len(ks.calls) >= l.Ceiling() {
            wait = ks.calls[0].Add(l.cfg.Window).Sub(now)
        }
        if wait <= 0 {
            ks.calls = append(ks.calls, now)
            l.mu.Unlock()
            return nil
        }
        recent := len(ks.calls)
        l.mu.Unlock()

        if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
            return fmt.Errorf("rate limit wait %s exceeds context deadline: %w", wait, context.DeadlineExceeded)
        }

        l.logger.Debug("rate limit wait",
            zap.String("credential", Mask(credential)),
            zap.Int("recent_calls", recent),
            zap.Duration("wait", wait))

        t := time.NewTimer(wait)
        select {
        case <-ctx.Done():
            t.Stop()
            return ctx.Err()
        case <-t.C:
        }
    }
}

// RecordCall appends count timestamps for calls made outside Admit,
// e.g. the extra requests of a batched call.
func (l *Limiter) RecordCall(credential string, count int) {
    if count <= 0 { return }
    l.mu.Lock()
    defer l.mu.Unlock()
    now := l.clock()
    ks := l.status(credential)
    for i := 0; i < count; i++ {
        ks.calls = append(ks.calls, now)
    }
}

// RecordRejection stamps an observed 429. It gates future admission for
// RejectionCooldown and leaves the window accounting untouched.
func (l *Limiter) RecordRejection(credential string) {
    l.mu.Lock()
    l.status(credential).last429 = l.clock()
    l.mu.Unlock()
    l.logger.Warn("provider rejected call with 429",
        zap.String("credential", Mask(credential)),
        zap.Duration("cooldown", l.cfg.RejectionCooldown))
}

// Status reports the current window usage without mutating state.
func (l *Limiter) Status(credential string) Status {
    l.mu.Lock()
    defer l.mu.Unlock()
    ks, ok := l.keys[credential]
    if !ok {
        return l.snapshot(0, time.Time{}, l.clock())
    }
    now := l.clock()
    return l.snapshot(l.countRecent(ks, now), ks.last429, now)
}

// Statuses reports Status for every credential seen so far, keyed by masked credential.
func (l *Limiter) Statuses() map[string]Status {
    l.mu.Lock()
    defer l.mu.Unlock()
    now := l.clock()
    out := make(map[string]Status, len(l.keys))
    for k, ks := range l.keys {
        out[Mask(k)] = l.snapshot(l.countRecent(ks, now), ks.last429, now)
    }
    return out
}

// Reset drops all credential state. Intended for test isolation.
func (l *Limiter) Reset() {
    l.mu.Lock()
    l.keys = make(map[string]*keyStatus)
    l.mu.Unlock()
}

func (l *Limiter) status(credential string) *keyStatus {
    ks, ok := l.keys[credential]
    if !ok {
        ks = &keyStatus{}
        l.keys[credential] = ks
    }
    return ks
}

// prune drops timestamps that fell out of the window.
func (l *Limiter) prune(ks *keyStatus, now time.Time) {
    i := 0
    for i < len(ks.calls) && now.Sub(ks.calls[i]) >= l.cfg.Window {
        i++
    }
    if i > 0 {
        ks.calls = append(ks.calls[:0], ks.calls[i:]...)
    }
}

func (l *Limiter) countRecent(ks *keyStatus, now time.Time) int {
    n := 0
    for _, ts := range ks.calls {
        if now.Sub(ts) < l.cfg.Window { n++ }
    }
    return n
}

func (l *Limiter) snapshot(recent int, last429, now time.Time) Status {
    ceiling := l.Ceiling()
    remaining := ceiling - recent
    if remaining < 0 { remaining = 0 }
    cooling := !last429.IsZero() && now.Before(last429.Add(l.cfg.RejectionCooldown))
    return Status{
        RecentCalls: recent,
        MaxAllowed:  ceiling,
        Remaining:   remaining,
        Percentage:  float64(recent) / float64(ceiling) * 100,
        IsAvailable: remaining > 0 && !cooling,
    }
}

// Mask hides all but the last four characters of a credential.
func Mask(credential string) string {
    if len(credential) <= 4 { return "****" }
    return "****" + credential[len(credential)-4:]
}
