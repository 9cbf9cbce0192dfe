package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/internal/agent"
	"github.com/ducminhle1904/crypto-swing-bot/internal/api"
	"github.com/ducminhle1904/crypto-swing-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-swing-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-swing-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-swing-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-swing-bot/internal/state"
)

// Dependencies are the exchange adapters and optional overrides of a Bot
type Dependencies struct {
	Market exchange.MarketDataSource
	// Executor places orders in live mode. Paper mode always fills through
	// a PaperExecutor seeded with the strategy budget.
	Executor  exchange.OrderExecutor
	Clock     clock.Clock
	Notifiers []notifications.Notifier
}

// Bot wires the agent to its ledger, notifiers and status server
type Bot struct {
	cfg        *config.AgentConfig
	agent      *agent.Agent
	health     *monitoring.HealthChecker
	server     *api.Server
	dispatcher *notifications.Dispatcher
	ledger     ledger.Ledger
	store      *state.Store
	closers    []io.Closer
	logger     *zap.Logger
}

// NewBot builds every component named by cfg
func NewBot(ctx context.Context, cfg *config.AgentConfig, deps Dependencies, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	executor := deps.Executor
	var paper *exchange.PaperExecutor
	if cfg.Mode == config.ModePaper {
		paper = exchange.NewPaperExecutor(cfg.Strategy.Budget, clk)
		executor = paper
	}
	if executor == nil {
		return nil, boterrors.NewConfigurationError("bot", "NewBot", "live mode requires an order executor")
	}

	b := &Bot{cfg: cfg, logger: logger}

	sinks, err := openLedgers(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}
	b.ledger = sinks

	notifiers := append([]notifications.Notifier(nil), deps.Notifiers...)
	if cfg.Notifications.TelegramEnabled() {
		notifiers = append(notifiers, notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID))
	}
	if cfg.Notifications.KafkaEnabled() {
		k := notifications.NewKafkaNotifier(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic)
		notifiers = append(notifiers, k)
		b.closers = append(b.closers, k)
	}
	b.dispatcher = notifications.NewDispatcher(logger.Named("notify"), cfg.Notifications.Timeout.Duration, notifiers...)

	b.health = monitoring.NewHealthChecker(clk, 2*cfg.PollInterval.Duration)

	agentCfg, err := agentConfig(cfg, clk)
	if err != nil {
		b.close()
		return nil, err
	}
	opts := []agent.Option{
		agent.WithLedger(b.ledger),
		agent.WithNotifier(b.dispatcher),
		agent.WithHealth(b.health),
		agent.WithClock(clk),
		agent.WithLogger(logger.Named("agent")),
	}
	if cfg.State.Path != "" {
		b.store = state.NewStore(cfg.State.Path,
			state.WithMaxAge(cfg.State.MaxAge.Duration),
			state.WithClock(clk),
			state.WithLogger(logger.Named("state")))
		opts = append(opts, agent.WithStateStore(b.store))
	}
	b.agent, err = agent.New(agentCfg, deps.Market, executor, opts...)
	if err != nil {
		b.close()
		return nil, err
	}
	if err := b.restore(paper); err != nil {
		b.close()
		return nil, err
	}

	if cfg.Server.Enabled {
		b.server = api.NewServer(cfg.Server.Addr, b.agent, b.health, logger.Named("api"))
	}

	logger.Info("bot configured",
		zap.String("mode", cfg.Mode),
		zap.Strings("symbols", cfg.Symbols),
		zap.String("interval", cfg.Interval),
		zap.Int("notifiers", b.dispatcher.Len()),
		zap.Bool("server", b.server != nil))
	return b, nil
}

// restore applies the saved snapshot and, in paper mode, seeds the paper
// account with the restored cash and holdings
func (b *Bot) restore(paper *exchange.PaperExecutor) error {
	if b.store == nil {
		return nil
	}
	snap, err := b.store.Load()
	if err != nil {
		return boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "bot", "restore")
	}
	if snap == nil {
		return nil
	}
	if err := b.agent.RestoreSnapshot(snap); err != nil {
		return err
	}
	if paper != nil {
		restored := b.agent.Snapshot()
		holdings := make(map[string]float64)
		for symbol, st := range restored.Symbols {
			if st.Open {
				holdings[symbol] = st.Quantity
			}
		}
		paper.Restore(restored.Balance, holdings)
	}
	return nil
}

func agentConfig(cfg *config.AgentConfig, clk clock.Clock) (agent.Config, error) {
	retry := cfg.Exchange.Retry.Policy()
	retry.Sleep = exchange.ClockSleep(clk)

	iv, err := bybit.ParseInterval(cfg.Interval)
	if err != nil {
		return agent.Config{}, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "bot", "agentConfig")
	}
	return agent.Config{
		Symbols:         cfg.Symbols,
		Interval:        cfg.Interval,
		BarDuration:     iv.Duration(),
		CandleLimit:     cfg.CandleLimit,
		PollInterval:    cfg.PollInterval.Duration,
		LimitOffset:     cfg.Exchange.LimitOffset,
		Strategy:        cfg.Strategy,
		Params:          cfg.Params,
		Retry:           retry,
		OptimizeOnStart: cfg.Optimizer.OnStart,
		OptimizeCandles: cfg.Optimizer.Candles,
		Optimizer:       cfg.Optimizer.OptimizerConfig,
		Bounds:          cfg.Optimizer.Bounds,
	}, nil
}

func openLedgers(ctx context.Context, cfg config.LedgerConfig) (ledger.Multi, error) {
	var sinks ledger.Multi
	if cfg.CSVPath != "" {
		l, err := ledger.NewCSVLedger(cfg.CSVPath)
		if err != nil {
			return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "bot", "openLedgers")
		}
		sinks = append(sinks, l)
	}
	if cfg.DatabaseURL != "" {
		l, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			sinks.Close()
			return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "bot", "openLedgers")
		}
		sinks = append(sinks, l)
	}
	return sinks, nil
}

// Run serves the status API and trades until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	if b.server != nil {
		go func() {
			if err := b.server.Start(); err != nil {
				b.logger.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	b.dispatcher.Notify("Bot started", fmt.Sprintf("Mode %s, symbols %s, interval %s",
		b.cfg.Mode, strings.Join(b.cfg.Symbols, ","), b.cfg.Interval))

	err := b.agent.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown stops the server, flushes notifications and closes the sinks
func (b *Bot) Shutdown() error {
	var first error
	if b.server != nil {
		if err := b.server.Shutdown(); err != nil {
			first = err
		}
	}

	b.dispatcher.Notify("Bot stopped", fmt.Sprintf("Balance %.2f", b.agent.Balance()))
	done := make(chan struct{})
	go func() {
		b.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(b.cfg.Notifications.Timeout.Duration + time.Second):
		b.logger.Warn("notifications still in flight at shutdown")
	}

	if b.store != nil {
		if err := b.store.Save(b.agent.Snapshot()); err != nil {
			b.logger.Warn("final state save failed", zap.Error(err))
		}
	}

	if err := b.close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (b *Bot) close() error {
	var first error
	if b.ledger != nil {
		if err := b.ledger.Close(); err != nil {
			first = err
		}
	}
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
