package httpx

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func TestFetch_ReturnsBodyAndStatus(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        require.Equal(t, "application/json", r.Header.Get("Accept"))
        require.Equal(t, "v", r.Header.Get("X-Key"))
        require.Equal(t, "marketdata/1.0", r.Header.Get("User-Agent"))
        w.WriteHeader(http.StatusTeapot)
        _, _ = w.Write([]byte(`{"ok":true}`))
    }))
    defer srv.Close()

    res, err := Fetch(t.Context(), New(5*time.Second), srv.URL, http.Header{"X-Key": []string{"v"}}, time.Second)
    require.NoError(t, err)
    require.Equal(t, http.StatusTeapot, res.StatusCode)
    require.JSONEq(t, `{"ok":true}`, string(res.Body))
}

func TestFetch_TimeoutIsTyped(t *testing.T) {
    release := make(chan struct{})
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        select {
        case <-release:
        case <-r.Context().Done():
        }
    }))
    defer srv.Close()
    defer close(release)

    start := time.Now()
    _, err := Fetch(t.Context(), New(5*time.Second), srv.URL+"?token=secret", nil, 50*time.Millisecond)
    require.Error(t, err)
    require.True(t, IsTimeout(err), "want timeout, got %T %v", err, err)
    require.Less(t, time.Since(start), 2*time.Second)
    require.NotContains(t, err.Error(), "secret")
}

func TestFetch_TransportErrorIsTyped(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
    addr := srv.URL
    srv.Close()

    _, err := Fetch(t.Context(), New(time.Second), addr+"/quote?token=secret", nil, time.Second)
    var te *TransportError
    require.True(t, errors.As(err, &te), "want transport error, got %T %v", err, err)
    require.NotContains(t, err.Error(), "secret")
}

func TestFetch_ParentCancellationIsNotATimeout(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        <-r.Context().Done()
    }))
    defer srv.Close()

    ctx, cancel := context.WithCancel(t.Context())
    go func() {
        time.Sleep(20 * time.Millisecond)
        cancel()
    }()
    _, err := Fetch(ctx, New(time.Second), srv.URL, nil, 5*time.Second)
    require.ErrorIs(t, err, context.Canceled)
    require.False(t, IsTimeout(err))
}

func TestFetch_BadURL(t *testing.T) {
    _, err := Fetch(t.Context(), New(time.Second), string([]rune{0x7f}), nil, time.Second)
    require.Error(t, err)
}

func TestRedact(t *testing.T) {
    require.Equal(t, "https://x/quote?symbol=AAPL&token=REDACTED", redact("https://x/quote?symbol=AAPL&token=abc"))
}
