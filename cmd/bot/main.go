// Command bot runs the swing-trading agent against Bybit, in paper or live
// mode, with a status server on the side.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/cmd/common"
	"github.com/ducminhle1904/crypto-swing-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-swing-bot/internal/logger"
)

func main() {
	var (
		configFile = flag.String("config", "agent", "Configuration file (name in configs/ or path)")
		envFile    = flag.String("env", ".env", "Environment file path")
	)
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		common.PrintVersion(os.Stdout, "swingbot")
		return
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("⚠️  %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	zl, closeLog, err := logger.New(logger.Options{Name: "swingbot", Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := bybit.NewClient(cfg.Exchange.Config, zl.Named("bybit"))
	zl.Info("exchange client ready",
		zap.String("environment", client.GetEnvironment()),
		zap.String("category", client.Category()))

	deps := Dependencies{Market: client}
	if cfg.Mode == config.ModeLive {
		if err := checkBalance(ctx, client, zl); err != nil {
			zl.Error("startup balance check failed", zap.Error(err))
			closeLog()
			os.Exit(1)
		}
		deps.Executor = client
	}

	bot, err := NewBot(ctx, cfg, deps, zl)
	if err != nil {
		zl.Error("failed to build bot", zap.Error(err))
		closeLog()
		os.Exit(1)
	}

	log.Printf("🚀 Swing bot running in %s mode on %v (%s)", cfg.Mode, cfg.Symbols, cfg.Interval)
	runErr := bot.Run(ctx)
	if runErr != nil {
		zl.Error("bot stopped with error", zap.Error(runErr))
	}

	log.Println("🛑 Shutting down...")
	if err := bot.Shutdown(); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}
	log.Println("✅ Bot stopped")
	if runErr != nil {
		closeLog()
		os.Exit(1)
	}
}

// checkBalance logs the USDT wallet balance. Credential failures are fatal,
// anything else is only a warning.
func checkBalance(ctx context.Context, client *bybit.Client, zl *zap.Logger) error {
	balance, err := client.GetBalance(ctx, bybit.AccountTypeUnified, "USDT")
	if err != nil {
		if boterrors.IsFatal(err) {
			return err
		}
		zl.Warn("balance check failed", zap.Error(err))
		return nil
	}
	zl.Info("wallet balance", zap.String("asset", balance.Asset), zap.Float64("free", balance.Free), zap.Float64("locked", balance.Locked))
	return nil
}
