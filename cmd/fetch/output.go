package main

import (
    "encoding/json"
    "fmt"
    "io"
    "time"

    "github.com/jedib0t/go-pretty/v6/table"
    "github.com/jedib0t/go-pretty/v6/text"
    "gopkg.in/yaml.v3"

    "marketdata/internal/provider"
    "marketdata/internal/provider/cache"
)

func render[T any](w io.Writer, format string, src cache.Source, records []T, tab func([]T) table.Writer) error {
    switch format {
    case "json":
        enc := json.NewEncoder(w)
        enc.SetIndent("", "  ")
        return enc.Encode(records)
    case "yaml":
        enc := yaml.NewEncoder(w)
        enc.SetIndent(2)
        if err := enc.Encode(records); err != nil { return err }
        return enc.Close()
    }
    t := tab(records)
    t.AppendFooter(table.Row{fmt.Sprintf("%d rows, source: %s", len(records), src)})
    _, err := fmt.Fprintln(w, t.Render())
    return err
}

func newTable(header table.Row, numeric ...int) table.Writer {
    t := table.NewWriter()
    t.SetStyle(table.StyleRounded)
    t.Style().Format.Footer = text.FormatDefault
    t.AppendHeader(header)
    configs := make([]table.ColumnConfig, 0, len(numeric))
    for _, n := range numeric {
        configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
    }
    t.SetColumnConfigs(configs)
    return t
}

func quotesTable(quotes []provider.Quote) table.Writer {
    t := newTable(table.Row{"Symbol", "Name", "Price", "Change", "Change %", "Market Cap"}, 3, 4, 5, 6)
    for _, q := range quotes {
        t.AppendRow(table.Row{
            q.Symbol,
            q.Name,
            fmt.Sprintf("%.2f", q.Price),
            fmt.Sprintf("%+.2f", q.Change),
            fmt.Sprintf("%+.2f%%", q.ChangePercent),
            fmt.Sprintf("%.0f", q.MarketCap),
        })
    }
    return t
}

func coinsTable(coins []provider.Coin) table.Writer {
    t := newTable(table.Row{"ID", "Symbol", "Name", "Price", "24h %", "Market Cap"}, 4, 5, 6)
    for _, c := range coins {
        t.AppendRow(table.Row{
            c.ID,
            c.Symbol,
            c.Name,
            fmt.Sprintf("%g", c.CurrentPrice),
            fmt.Sprintf("%+.2f%%", c.PriceChangePercentage24h),
            fmt.Sprintf("%.0f", c.MarketCap),
        })
    }
    return t
}

func pointsTable(points []provider.Point) table.Writer {
    t := newTable(table.Row{"Date", "Value"}, 2)
    for _, p := range points {
        t.AppendRow(table.Row{time.Unix(p.Time, 0).UTC().Format(time.DateOnly), fmt.Sprintf("%g", p.Value)})
    }
    return t
}
