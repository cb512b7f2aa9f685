package ratelimit

import (
    "context"
    "sort"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func TestLimiter_CeilingAppliesSafetyBuffer(t *testing.T) {
    l := New(Config{Window: time.Minute, MaxCalls: 60, SafetyBuffer: 5})
    require.Equal(t, 55, l.Ceiling())

    l = New(Config{Window: time.Minute, MaxCalls: 2, SafetyBuffer: 5})
    require.Equal(t, 1, l.Ceiling())
}

func TestLimiter_AdmitsUpToCeilingWithoutWaiting(t *testing.T) {
    l := New(Config{Window: time.Hour, MaxCalls: 5, SafetyBuffer: 2})
    start := time.Now()
    for i := 0; i < 3; i++ {
        require.NoError(t, l.Admit(t.Context(), "key"))
    }
    require.Less(t, time.Since(start), 50*time.Millisecond)

    st := l.Status("key")
    require.Equal(t, 3, st.RecentCalls)
    require.Equal(t, 3, st.MaxAllowed)
    require.Equal(t, 0, st.Remaining)
    require.False(t, st.IsAvailable)
    require.InDelta(t, 100.0, st.Percentage, 0.001)
}

func TestLimiter_WaitsForOldestToExpire(t *testing.T) {
    window := 150 * time.Millisecond
    l := New(Config{Window: window, MaxCalls: 2})
    start := time.Now()
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.GreaterOrEqual(t, time.Since(start), window)
}

func TestLimiter_ConcurrentCallersNeverExceedCeiling(t *testing.T) {
    window := 120 * time.Millisecond
    l := New(Config{Window: window, MaxCalls: 5, SafetyBuffer: 2}) // ceiling 3

    var mu sync.Mutex
    var admitted []time.Time
    var observed []int
    var errs []error
    var wg sync.WaitGroup
    for i := 0; i < 9; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            err := l.Admit(context.Background(), "shared")
            mu.Lock()
            defer mu.Unlock()
            if err != nil {
                errs = append(errs, err)
                return
            }
            admitted = append(admitted, time.Now())
            observed = append(observed, l.Status("shared").RecentCalls)
        }()
    }
    wg.Wait()

    require.Empty(t, errs)
    require.Len(t, admitted, 9)
    for _, n := range observed {
        require.LessOrEqual(t, n, 3)
    }
    sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })
    // Any ceiling+1 consecutive admissions must span at least one window.
    tolerance := 30 * time.Millisecond
    for i := 0; i+3 < len(admitted); i++ {
        require.GreaterOrEqual(t, admitted[i+3].Sub(admitted[i]), window-tolerance)
    }
}

func TestLimiter_CredentialsAreIndependent(t *testing.T) {
    l := New(Config{Window: time.Hour, MaxCalls: 1})
    require.NoError(t, l.Admit(t.Context(), "a"))
    start := time.Now()
    require.NoError(t, l.Admit(t.Context(), "b"))
    require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_RejectionEnforcesCooldown(t *testing.T) {
    cooldown := 120 * time.Millisecond
    l := New(Config{Window: time.Hour, MaxCalls: 100, RejectionCooldown: cooldown})

    start := time.Now()
    l.RecordRejection("key")
    l.RecordRejection("key")
    require.False(t, l.Status("key").IsAvailable)
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.GreaterOrEqual(t, time.Since(start), cooldown)

    // The rejection gates admission only; the window still has room.
    require.Equal(t, 1, l.Status("key").RecentCalls)
}

func TestLimiter_AdmitHonoursContext(t *testing.T) {
    l := New(Config{Window: time.Hour, MaxCalls: 1})
    require.NoError(t, l.Admit(t.Context(), "key"))

    ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
    defer cancel()
    err := l.Admit(ctx, "key")
    require.ErrorIs(t, err, context.DeadlineExceeded)
    require.Equal(t, 1, l.Status("key").RecentCalls)
}

func TestLimiter_FailsFastWhenWaitOutlastsDeadline(t *testing.T) {
    l := New(Config{Window: time.Hour, MaxCalls: 100, RejectionCooldown: time.Minute})
    l.RecordRejection("key")

    ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
    defer cancel()
    start := time.Now()
    err := l.Admit(ctx, "key")
    require.ErrorIs(t, err, context.DeadlineExceeded)
    require.Less(t, time.Since(start), 100*time.Millisecond)
    require.Equal(t, 0, l.Status("key").RecentCalls)
}

func TestLimiter_RecordCallCountsBatches(t *testing.T) {
    l := New(Config{Window: time.Hour, MaxCalls: 10})
    l.RecordCall("key", 4)
    l.RecordCall("key", 0)
    require.Equal(t, 4, l.Status("key").RecentCalls)
    require.Equal(t, 6, l.Status("key").Remaining)
}

func TestLimiter_PrunesWithInjectedClock(t *testing.T) {
    now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
    l := New(Config{Window: time.Minute, MaxCalls: 2}, WithClock(func() time.Time { return now }))
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.Equal(t, 2, l.Status("key").RecentCalls)

    now = now.Add(61 * time.Second)
    require.Equal(t, 0, l.Status("key").RecentCalls)
    require.NoError(t, l.Admit(t.Context(), "key"))
    require.Len(t, l.keys["key"].calls, 1)
}

func TestLimiter_StatusesAndReset(t *testing.T) {
    l := New(Config{Window: time.Hour, MaxCalls: 10})
    require.NoError(t, l.Admit(t.Context(), "abcdef123456"))
    all := l.Statuses()
    require.Contains(t, all, "****3456")
    require.Equal(t, 1, all["****3456"].RecentCalls)

    l.Reset()
    require.Empty(t, l.Statuses())
    require.Equal(t, 0, l.Status("abcdef123456").RecentCalls)
    require.True(t, l.Status("abcdef123456").IsAvailable)
}

func TestMask(t *testing.T) {
    require.Equal(t, "****", Mask("demo"))
    require.Equal(t, "****wxyz", Mask("abcdwxyz"))
}

func TestPacer_NilAndDisabledNeverWait(t *testing.T) {
    var p *Pacer
    require.NoError(t, p.Wait(t.Context()))
    require.Nil(t, NewPacer(0, 1))
}

func TestPacer_SpacesCallsAfterBurst(t *testing.T) {
    p := NewPacer(600, 1) // one call per 100ms
    start := time.Now()
    require.NoError(t, p.Wait(t.Context()))
    require.NoError(t, p.Wait(t.Context()))
    require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
