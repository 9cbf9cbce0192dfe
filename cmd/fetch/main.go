// Command fetch downloads Bybit klines into the CSV layout read by the
// backtest command.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/cmd/common"
	"github.com/ducminhle1904/crypto-swing-bot/internal/config"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-swing-bot/internal/logger"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/data"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

const (
	DefaultDataRoot = "data"
	DefaultExchange = "bybit"
	DefaultCandles  = 5000
)

type historySource interface {
	GetHistory(ctx context.Context, symbol, interval string, total int, end time.Time) ([]types.OHLCV, error)
}

type fetchOptions struct {
	Symbol   string
	Interval string
	Category string
	Candles  int
	DataRoot string
	Output   string
	End      time.Time
}

func main() {
	var (
		symbol   = flag.String("symbol", "BTCUSDT", "Trading symbol")
		interval = flag.String("interval", "1h", "Kline interval (e.g., 15m,1h,4h,1d)")
		category = flag.String("category", "spot", "Bybit product category (spot, linear)")
		candles  = flag.Int("candles", DefaultCandles, "Number of closed candles to download")
		dataRoot = flag.String("data-root", DefaultDataRoot, "Root folder for <EXCHANGE>/<CATEGORY>/<SYMBOL>/<INTERVAL>/candles.csv")
		output   = flag.String("out", "", "Output CSV path (overrides -data-root layout)")
		endStr   = flag.String("end", "", "Fetch candles up to this RFC3339 time (default now)")
		testnet  = flag.Bool("testnet", false, "Use the Bybit testnet")
		envFile  = flag.String("env", ".env", "Environment file path")
		logLevel = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	)
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		common.PrintVersion(os.Stdout, "fetch")
		return
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("⚠️  Could not load %s: %v", *envFile, err)
	}

	zl, closeLog, err := logger.New(logger.Options{Name: "fetch", Level: *logLevel, Console: true})
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer closeLog()

	opts := fetchOptions{
		Symbol:   strings.ToUpper(strings.TrimSpace(*symbol)),
		Interval: *interval,
		Category: *category,
		Candles:  *candles,
		DataRoot: *dataRoot,
		Output:   *output,
	}
	if *endStr != "" {
		opts.End, err = time.Parse(time.RFC3339, *endStr)
		if err != nil {
			log.Fatalf("❌ Invalid -end %q: %v", *endStr, err)
		}
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    os.Getenv(config.EnvBybitAPIKey),
		APISecret: os.Getenv(config.EnvBybitAPISecret),
		Testnet:   *testnet,
		Category:  *category,
	}, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, opts, client, exchange.DefaultRetryPolicy(), os.Stdout); err != nil {
		zl.Error("fetch failed", zap.Error(err))
		log.Fatalf("❌ %v", err)
	}
}

// run downloads the candles and writes them, returning the output path
func run(ctx context.Context, opts fetchOptions, src historySource, retry exchange.RetryPolicy, out io.Writer) (string, error) {
	if opts.Candles <= 0 {
		return "", fmt.Errorf("candles must be positive, got %d", opts.Candles)
	}
	iv, err := bybit.ParseInterval(opts.Interval)
	if err != nil {
		return "", err
	}

	path := opts.Output
	if path == "" {
		path = data.NewDefaultFileLocator().DataFilePath(opts.DataRoot, DefaultExchange, opts.Category, opts.Symbol, opts.Interval)
	}

	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}

	fmt.Fprintf(out, "🔄 Fetching %d %s candles for %s...\n", opts.Candles, opts.Interval, opts.Symbol)
	var bars []types.OHLCV
	err = retry.Do(ctx, func(ctx context.Context) error {
		var err error
		bars, err = src.GetHistory(ctx, opts.Symbol, opts.Interval, opts.Candles+1, end)
		return err
	})
	if err != nil {
		return "", err
	}

	bars = bybit.DropForming(bars, iv, end)
	if len(bars) > opts.Candles {
		bars = bars[len(bars)-opts.Candles:]
	}
	if err := data.ValidateData(bars); err != nil {
		return "", fmt.Errorf("downloaded data is invalid: %w", err)
	}

	if err := data.WriteCSV(path, bars); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "✅ Wrote %d candles (%s → %s) to %s\n", len(bars),
		bars[0].Timestamp.Format(time.DateTime), bars[len(bars)-1].Timestamp.Format(time.DateTime), path)
	return path, nil
}
