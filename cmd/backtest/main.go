// Command backtest replays the swing strategy over historical candles and
// optionally searches profit_threshold and trailing_stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/cmd/common"
	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
	"github.com/ducminhle1904/crypto-swing-bot/internal/config"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-swing-bot/internal/logger"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/data"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// Logging functions for console progress
func logInfo(format string, args ...interface{}) {
	log.Printf("ℹ️  "+format, args...)
}

func logWarning(format string, args ...interface{}) {
	log.Printf("⚠️  "+format, args...)
}

func logSuccess(format string, args ...interface{}) {
	log.Printf("✅ "+format, args...)
}

func logProgress(format string, args ...interface{}) {
	log.Printf("🔄 "+format, args...)
}

// historySource is the Bybit client subset used to download candles
type historySource interface {
	GetHistory(ctx context.Context, symbol, interval string, total int, end time.Time) ([]types.OHLCV, error)
}

func main() {
	var (
		configFile  = flag.String("config", "", "Agent configuration file (name in configs/ or path)")
		dataFile    = flag.String("data", "", "Path to historical data CSV")
		dataRoot    = flag.String("data-root", DefaultDataRoot, "Root folder containing <EXCHANGE>/<CATEGORY>/<SYMBOL>/<INTERVAL>/candles.csv")
		exchangeArg = flag.String("exchange", DefaultExchange, "Exchange folder under -data-root")
		category    = flag.String("category", "", "Product category (default from config or spot)")
		symbol      = flag.String("symbol", "", "Trading symbol (default from config or BTCUSDT)")
		interval    = flag.String("interval", "", "Bar interval (default from config or 1h)")
		periodStr   = flag.String("period", "", "Limit data to trailing window (e.g., 7d,30d,180d)")
		fetch       = flag.Bool("fetch", false, "Download candles from Bybit instead of reading a file")
		candles     = flag.Int("candles", 2000, "Candles to download with -fetch")
		testnet     = flag.Bool("testnet", false, "Use the Bybit testnet for -fetch")
		optimize    = flag.Bool("optimize", false, "Run Bayesian optimization of profit_threshold and trailing_stop")
		splitRatio  = flag.Float64("split-ratio", DefaultSplitRatio, "Holdout split (0.7 = optimize on 70%, validate on 30%)")
		seed        = flag.Int64("seed", 0, "Optimizer seed (default from config)")
		iterations  = flag.Int("iterations", 0, "Optimizer iterations after the random points")
		initPoints  = flag.Int("init-points", 0, "Optimizer random starting points")
		workers     = flag.Int("workers", 0, "Parallel backtests during optimization")
		profit      = flag.Float64("profit-threshold", 0, "Profit threshold (fraction) for a single backtest")
		trailing    = flag.Float64("trailing-stop", 0, "Trailing stop (fraction) for a single backtest")
		risk        = flag.Float64("risk", 0, "Risk percentage per trade (default from config or 0.01)")
		mlGate      = flag.Bool("ml", false, "Enable the ML gate")
		takeProfit  = flag.Bool("take-profit", false, "Enable the take-profit exit")
		outputDir   = flag.String("output", "", "Output directory (default results/<SYMBOL>_<interval>)")
		consoleOnly = flag.Bool("console-only", false, "Only display results in console, do not write files")
		topTrials   = flag.Int("top", DefaultTopTrials, "Trials shown in the optimization table")
		envFile     = flag.String("env", ".env", "Environment file path for Bybit API credentials")
		logLevel    = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	)
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		common.PrintVersion(os.Stdout, "backtest")
		return
	}

	opts := &BacktestOptions{
		ConfigFile:      *configFile,
		DataFile:        *dataFile,
		DataRoot:        *dataRoot,
		Exchange:        *exchangeArg,
		Category:        *category,
		Symbol:          *symbol,
		Interval:        *interval,
		Fetch:           *fetch,
		Candles:         *candles,
		Testnet:         *testnet,
		Optimize:        *optimize,
		SplitRatio:      *splitRatio,
		Seed:            *seed,
		Iterations:      *iterations,
		InitPoints:      *initPoints,
		Workers:         *workers,
		ProfitThreshold: *profit,
		TrailingStop:    *trailing,
		Risk:            *risk,
		OutputDir:       *outputDir,
		ConsoleOnly:     *consoleOnly,
		TopTrials:       *topTrials,
		LogLevel:        *logLevel,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ml":
			opts.MLGate = mlGate
		case "take-profit":
			opts.TakeProfit = takeProfit
		}
	})
	if s := strings.TrimSpace(*periodStr); s != "" {
		d, ok := data.ParseTrailingPeriod(s)
		if !ok {
			log.Fatalf("❌ Invalid -period %q", s)
		}
		opts.Period = d
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		logWarning("Could not load %s: %v", *envFile, err)
	}

	zl, closeLog, err := logger.New(logger.Options{Name: "backtest", Level: opts.LogLevel, Console: true})
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer closeLog()

	setup, err := resolveSetup(opts)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src historySource
	if opts.Fetch || opts.DataFile == "" {
		src = bybit.NewClient(bybit.Config{
			APIKey:    os.Getenv(config.EnvBybitAPIKey),
			APISecret: os.Getenv(config.EnvBybitAPISecret),
			Testnet:   opts.Testnet,
			Category:  opts.Category,
		}, zl)
	}

	bars, err := loadBars(ctx, opts, src)
	if err != nil {
		zl.Error("failed to load data", zap.Error(err))
		log.Fatalf("❌ Failed to load data: %v", err)
	}
	logInfo("Loaded %d bars for %s %s (%s → %s)", len(bars), opts.Symbol, opts.Interval,
		bars[0].Timestamp.Format(time.DateTime), bars[len(bars)-1].Timestamp.Format(time.DateTime))

	if opts.Optimize {
		logProgress("Optimizing over %d+%d trials (seed %d)...",
			setup.Optimizer.InitPoints, setup.Optimizer.Iterations, setup.Optimizer.Seed)
	}
	run, err := runBacktest(ctx, setup, opts, bars, zl)
	if err != nil {
		zl.Error("backtest failed", zap.Error(err))
		log.Fatalf("❌ Backtest failed: %v", err)
	}

	printRun(os.Stdout, run, opts)

	if opts.ConsoleOnly {
		logInfo("Console-only mode: Skipping file output")
		return
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = defaultOutputDir(opts.Symbol, opts.Interval)
	}
	files, err := writeOutputs(run, dir)
	if err != nil {
		log.Fatalf("❌ Failed to write results: %v", err)
	}
	for _, f := range files {
		logSuccess("Wrote %s", f)
	}
}

// loadBars reads the data file, falls back to the data-root layout, and
// downloads from Bybit when neither exists or -fetch is set
func loadBars(ctx context.Context, opts *BacktestOptions, src historySource) ([]types.OHLCV, error) {
	path := opts.DataFile
	if path == "" && !opts.Fetch {
		path = data.NewDefaultFileLocator().FindDataFile(opts.DataRoot, opts.Exchange, opts.Symbol, opts.Interval)
	}

	var bars []types.OHLCV
	if path != "" && !opts.Fetch {
		loaded, err := data.NewCSVProvider().LoadData(path)
		if err != nil {
			return nil, err
		}
		bars = loaded
	} else {
		if src == nil {
			return nil, fmt.Errorf("no data file for %s %s and no exchange to fetch from", opts.Symbol, opts.Interval)
		}
		iv, err := bybit.ParseInterval(opts.Interval)
		if err != nil {
			return nil, err
		}
		logProgress("Fetching %d %s candles for %s from Bybit...", opts.Candles, opts.Interval, opts.Symbol)
		now := time.Now().UTC()
		err = exchange.DefaultRetryPolicy().Do(ctx, func(ctx context.Context) error {
			var err error
			bars, err = src.GetHistory(ctx, opts.Symbol, opts.Interval, opts.Candles+1, now)
			return err
		})
		if err != nil {
			return nil, err
		}
		bars = bybit.DropForming(bars, iv, now)
	}

	if opts.Period > 0 {
		bars = data.NewDefaultDataFilter().FilterByPeriod(bars, opts.Period)
	}
	if err := data.ValidateData(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// BacktestRun is the outcome of one invocation
type BacktestRun struct {
	Symbol       string
	Interval     string
	Results      *backtest.BacktestResults
	Optimization *backtest.OptimizationResult
	Holdout      *backtest.BacktestResults
}

// runBacktest evaluates the configured params, or the optimizer's best
// params when -optimize is set. With a split ratio the search runs on the
// leading share and the best params are replayed on the rest, prefixed
// with the warm-up bars.
func runBacktest(ctx context.Context, setup *Setup, opts *BacktestOptions, bars []types.OHLCV, zl *zap.Logger) (*BacktestRun, error) {
	engine := backtest.NewBacktestEngine(setup.Strategy,
		backtest.WithSymbol(opts.Symbol),
		backtest.WithEngineLogger(zl))

	train, test := data.SplitByRatio(bars, opts.SplitRatio)
	run := &BacktestRun{Symbol: opts.Symbol, Interval: opts.Interval}

	params := setup.Params
	if opts.Optimize {
		result, err := backtest.NewParameterOptimizer(engine, setup.Optimizer, zl).Optimize(ctx, train, setup.Bounds)
		if err != nil {
			return nil, err
		}
		run.Optimization = result
		run.Results = result.BestResults
		params = result.BestParams
	} else {
		results, err := engine.Run(train, params)
		if err != nil {
			return nil, err
		}
		run.Results = results
	}

	if len(test) > 0 {
		from := len(train) - setup.Strategy.WarmupBars
		if from < 0 {
			from = 0
		}
		holdout, err := engine.Run(bars[from:], params)
		if err != nil {
			return nil, fmt.Errorf("holdout: %w", err)
		}
		run.Holdout = holdout
	}
	return run, nil
}
