package main

import (
    "context"
    "fmt"
    "io"
    "os"
    "strings"
    "time"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "marketdata/internal/aggregate"
    "marketdata/internal/app"
    "marketdata/internal/config"
    "marketdata/internal/logging"
    "marketdata/internal/provider"
    "marketdata/internal/provider/cache"
)

type marketService interface {
    Stocks(ctx context.Context, symbols []string) ([]provider.Quote, cache.Source)
    Cryptos(ctx context.Context, currency string, limit int) ([]provider.Coin, cache.Source)
    History(ctx context.Context, kind aggregate.Kind, id, currency string, days int) ([]provider.Point, cache.Source)
}

type builder func(cfg config.Config, logger *zap.Logger) (marketService, error)

func buildApp(cfg config.Config, logger *zap.Logger) (marketService, error) {
    a, err := app.New(cfg, logger)
    if err != nil { return nil, err }
    return a.Service, nil
}

type options struct {
    configPath string
    output     string
    logLevel   string
    timeout    time.Duration
}

func main() {
    if err := newRootCmd(os.Stdout, buildApp).Execute(); err != nil {
        os.Exit(1)
    }
}

func newRootCmd(out io.Writer, build builder) *cobra.Command {
    opts := &options{}
    var svc marketService
    var logger *zap.Logger

    root := &cobra.Command{
        Use:           "fetch",
        Short:         "Fetch market data once and print it",
        SilenceUsage:  true,
        SilenceErrors: false,
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            switch opts.output {
            case "table", "json", "yaml":
            default:
                return fmt.Errorf("--output must be table, json or yaml, got %q", opts.output)
            }
            cfg, err := config.Load(opts.configPath)
            if err != nil { return fmt.Errorf("config: %w", err) }
            level := cfg.Logging.Level
            if opts.logLevel != "" { level = opts.logLevel }
            logger, err = logging.New(level, cfg.Logging.Development)
            if err != nil { return err }
            svc, err = build(cfg, logger)
            return err
        },
        PersistentPostRun: func(cmd *cobra.Command, args []string) {
            if logger != nil { _ = logger.Sync() }
        },
    }
    root.SetOut(out)
    root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML or JSON config file (default: $CONFIG_FILE)")
    root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
    root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level written to stderr (default from config)")
    root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")

    ctx := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
        return context.WithTimeout(cmd.Context(), opts.timeout)
    }

    stocks := &cobra.Command{
        Use:   "stocks [SYMBOL...]",
        Short: "Quotes for the given symbols or the popular list",
        RunE: func(cmd *cobra.Command, args []string) error {
            c, cancel := ctx(cmd)
            defer cancel()
            quotes, src := svc.Stocks(c, args)
            return render(cmd.OutOrStdout(), opts.output, src, quotes, quotesTable)
        },
    }

    var currency string
    var limit int
    cryptos := &cobra.Command{
        Use:   "cryptos",
        Short: "Top coins by market cap",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            c, cancel := ctx(cmd)
            defer cancel()
            coins, src := svc.Cryptos(c, currency, limit)
            return render(cmd.OutOrStdout(), opts.output, src, coins, coinsTable)
        },
    }
    cryptos.Flags().StringVar(&currency, "currency", "", "quote currency (default from config)")
    cryptos.Flags().IntVar(&limit, "limit", 0, "number of coins (default from config)")

    var days int
    var histCurrency string
    history := &cobra.Command{
        Use:   "history stock|crypto ID",
        Short: "Daily price history",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            kind, err := aggregate.ParseKind(args[0])
            if err != nil { return err }
            c, cancel := ctx(cmd)
            defer cancel()
            points, src := svc.History(c, kind, strings.TrimSpace(args[1]), histCurrency, days)
            return render(cmd.OutOrStdout(), opts.output, src, points, pointsTable)
        },
    }
    history.Flags().IntVar(&days, "days", 30, "lookback in days (1-365)")
    history.Flags().StringVar(&histCurrency, "currency", "", "quote currency (default from config)")

    root.AddCommand(stocks, cryptos, history)
    return root
}
