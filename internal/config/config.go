package config

import (
    "errors"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/go-viper/mapstructure/v2"
    "github.com/spf13/viper"
)

type Server struct {
    Port           int           `mapstructure:"port"`
    RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type Logging struct {
    Level       string `mapstructure:"level"`
    Development bool   `mapstructure:"development"`
}

type Stock struct {
    APIKey            string        `mapstructure:"api_key"`
    BaseURL           string        `mapstructure:"base_url"`
    Symbols           []string      `mapstructure:"symbols"`
    MaxCallsPerWindow int           `mapstructure:"max_calls_per_window"`
    SafetyBuffer      int           `mapstructure:"safety_buffer"`
    Window            time.Duration `mapstructure:"window"`
    RejectionCooldown time.Duration `mapstructure:"rejection_cooldown"`
    Timeout           time.Duration `mapstructure:"timeout"`
    MaxConcurrency    int           `mapstructure:"max_concurrency"`
}

type Crypto struct {
    APIKey           string          `mapstructure:"api_key"`
    APIKeyHeader     string          `mapstructure:"api_key_header"`
    BaseURL          string          `mapstructure:"base_url"`
    DefaultCurrency  string          `mapstructure:"default_currency"`
    DefaultLimit     int             `mapstructure:"default_limit"`
    MaxLimit         int             `mapstructure:"max_limit"`
    Timeout          time.Duration   `mapstructure:"timeout"`
    MaxAttempts      int             `mapstructure:"max_attempts"`
    Backoff          []time.Duration `mapstructure:"backoff"`
    KeylessPerMinute int             `mapstructure:"keyless_per_minute"`
    KeyedPerMinute   int             `mapstructure:"keyed_per_minute"`
}

type Cache struct {
    TTL      time.Duration `mapstructure:"ttl"`
    MaxItems int           `mapstructure:"max_items"`
}

type Config struct {
    Server  Server  `mapstructure:"server"`
    Logging Logging `mapstructure:"logging"`
    Stock   Stock   `mapstructure:"stock"`
    Crypto  Crypto  `mapstructure:"crypto"`
    Cache   Cache   `mapstructure:"cache"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
    "server.port":                "PORT",
    "server.request_timeout":     "REQUEST_TIMEOUT",
    "logging.level":              "LOG_LEVEL",
    "logging.development":        "LOG_DEVELOPMENT",
    "stock.api_key":              "FINNHUB_API_KEY",
    "stock.base_url":             "FINNHUB_BASE_URL",
    "stock.symbols":              "STOCK_SYMBOLS",
    "stock.max_calls_per_window": "FINNHUB_MAX_CALLS",
    "stock.safety_buffer":        "FINNHUB_SAFETY_BUFFER",
    "crypto.api_key":             "COINGECKO_API_KEY",
    "crypto.base_url":            "COINGECKO_BASE_URL",
    "crypto.default_currency":    "DEFAULT_CURRENCY",
    "crypto.default_limit":       "DEFAULT_LIMIT",
    "cache.ttl":                  "CACHE_TTL",
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("server.port", 8080)
    v.SetDefault("server.request_timeout", "15s")

    v.SetDefault("logging.level", "info")
    v.SetDefault("logging.development", false)

    v.SetDefault("stock.api_key", "demo")
    v.SetDefault("stock.base_url", "https://finnhub.io/api/v1")
    v.SetDefault("stock.symbols", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "NFLX", "AMD", "INTC"})
    v.SetDefault("stock.max_calls_per_window", 60)
    v.SetDefault("stock.safety_buffer", 5)
    v.SetDefault("stock.window", "60s")
    v.SetDefault("stock.rejection_cooldown", "60s")
    v.SetDefault("stock.timeout", "8s")
    v.SetDefault("stock.max_concurrency", 5)

    v.SetDefault("crypto.api_key", "")
    v.SetDefault("crypto.api_key_header", "x-cg-demo-api-key")
    v.SetDefault("crypto.base_url", "https://api.coingecko.com/api/v3")
    v.SetDefault("crypto.default_currency", "usd")
    v.SetDefault("crypto.default_limit", 20)
    v.SetDefault("crypto.max_limit", 250)
    v.SetDefault("crypto.timeout", "10s")
    v.SetDefault("crypto.max_attempts", 3)
    v.SetDefault("crypto.backoff", []string{"300ms", "700ms", "1200ms"})
    v.SetDefault("crypto.keyless_per_minute", 10)
    v.SetDefault("crypto.keyed_per_minute", 30)

    v.SetDefault("cache.ttl", "20s")
    v.SetDefault("cache.max_items", 1000)
}

// Default returns the built-in configuration.
func Default() Config {
    cfg, _ := load(viper.New(), "")
    return cfg
}

// Load layers defaults, the optional config file at path (YAML or JSON,
// CONFIG_FILE when path is empty) and the environment. A missing file is an
// error only when it was named explicitly.
func Load(path string) (Config, error) {
    return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (Config, error) {
    setDefaults(v)
    for key, env := range envBindings {
        if err := v.BindEnv(key, env); err != nil {
            return Config{}, fmt.Errorf("bind %s: %w", env, err)
        }
    }

    if path == "" {
        path = os.Getenv("CONFIG_FILE")
    }
    if path != "" {
        v.SetConfigFile(path)
        if err := v.ReadInConfig(); err != nil {
            return Config{}, fmt.Errorf("read config: %w", err)
        }
    }

    var cfg Config
    hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
        mapstructure.StringToTimeDurationHookFunc(),
        mapstructure.StringToSliceHookFunc(","),
    ))
    if err := v.Unmarshal(&cfg, hook); err != nil {
        return Config{}, fmt.Errorf("parse config: %w", err)
    }
    cfg.Stock.Symbols = trimAll(cfg.Stock.Symbols)
    cfg.Crypto.DefaultCurrency = strings.ToLower(strings.TrimSpace(cfg.Crypto.DefaultCurrency))
    cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
    return cfg, cfg.Validate()
}

// Validate rejects values the components cannot run with.
func (c Config) Validate() error {
    var errs []error
    if c.Server.Port <= 0 || c.Server.Port > 65535 {
        errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
    }
    if c.Stock.MaxCallsPerWindow <= 0 {
        errs = append(errs, errors.New("stock.max_calls_per_window must be positive"))
    }
    if c.Stock.SafetyBuffer < 0 {
        errs = append(errs, errors.New("stock.safety_buffer must not be negative"))
    }
    if c.Crypto.MaxLimit <= 0 {
        errs = append(errs, errors.New("crypto.max_limit must be positive"))
    }
    if c.Cache.TTL < 0 {
        errs = append(errs, errors.New("cache.ttl must not be negative"))
    }
    switch c.Logging.Level {
    case "debug", "info", "warn", "error":
    default:
        errs = append(errs, fmt.Errorf("logging.level %q unknown", c.Logging.Level))
    }
    return errors.Join(errs...)
}

// Addr is the server listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }

func trimAll(in []string) []string {
    out := make([]string, 0, len(in))
    for _, s := range in {
        if s = strings.TrimSpace(s); s != "" { out = append(out, s) }
    }
    return out
}
