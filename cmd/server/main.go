package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "marketdata/internal/app"
    "marketdata/internal/config"
    "marketdata/internal/logging"
)

func main() {
    cfgPath := flag.String("config", "", "path to a YAML or JSON config file (default: $CONFIG_FILE)")
    flag.Parse()

    if err := run(*cfgPath); err != nil {
        fmt.Fprintln(os.Stderr, "server:", err)
        os.Exit(1)
    }
}

func run(cfgPath string) error {
    cfg, err := config.Load(cfgPath)
    if err != nil { return fmt.Errorf("config: %w", err) }

    logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
    if err != nil { return err }
    defer func() { _ = logger.Sync() }()

    a, err := app.New(cfg, logger)
    if err != nil { return err }

    srv := &http.Server{
        Addr:              cfg.Addr(),
        Handler:           newRouter(a.Service, a.Limiter, logger.Named("http"), cfg.Server.RequestTimeout),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
        IdleTimeout:       60 * time.Second,
    }

    errCh := make(chan error, 1)
    go func() {
        logger.Info("server listening", zap.String("addr", srv.Addr))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
        close(errCh)
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    select {
    case err := <-errCh:
        return fmt.Errorf("listen: %w", err)
    case <-ctx.Done():
    }

    logger.Info("server shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        return fmt.Errorf("shutdown: %w", err)
    }
    logger.Info("server stopped")
    return nil
}
