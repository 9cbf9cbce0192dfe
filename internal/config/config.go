package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

// Trading modes
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// AgentConfig is the complete configuration of the live agent and the
// backtest CLI
type AgentConfig struct {
	Symbols      []string `json:"symbols"`
	Interval     string   `json:"interval"`      // 1m, 5m, 15m, 30m, 1h, 4h, 1d
	CandleLimit  int      `json:"candle_limit"`  // bars fetched per cycle
	PollInterval Duration `json:"poll_interval"` // wait between cycles
	Mode         string   `json:"mode"`          // paper or live

	Params   strategy.Params `json:"params"`
	Strategy strategy.Config `json:"strategy"`

	Optimizer     OptimizerConfig    `json:"optimizer"`
	Exchange      ExchangeConfig     `json:"exchange"`
	Ledger        LedgerConfig       `json:"ledger"`
	State         StateConfig        `json:"state"`
	Notifications NotificationConfig `json:"notifications"`
	Server        ServerConfig       `json:"server"`
	Log           LogConfig          `json:"log"`
}

// OptimizerConfig holds the startup optimization settings
type OptimizerConfig struct {
	backtest.OptimizerConfig
	OnStart bool            `json:"on_start"`
	Candles int             `json:"candles"` // history used for the search
	Bounds  backtest.Bounds `json:"bounds"`
}

// ExchangeConfig holds the Bybit connection and order settings
type ExchangeConfig struct {
	bybit.Config
	LimitOffset float64     `json:"limit_offset"`
	Retry       RetryConfig `json:"retry"`
}

// RetryConfig mirrors exchange.RetryPolicy with readable durations
type RetryConfig struct {
	MaxAttempts   int      `json:"max_attempts"`
	InitialDelay  Duration `json:"initial_delay"`
	MaxDelay      Duration `json:"max_delay"`
	BackoffFactor float64  `json:"backoff_factor"`
}

// Policy converts the section to a retry policy
func (r RetryConfig) Policy() exchange.RetryPolicy {
	return exchange.RetryPolicy{
		MaxAttempts:   r.MaxAttempts,
		InitialDelay:  r.InitialDelay.Duration,
		MaxDelay:      r.MaxDelay.Duration,
		BackoffFactor: r.BackoffFactor,
	}
}

// LedgerConfig selects the transaction sinks. Both may be active.
type LedgerConfig struct {
	CSVPath     string `json:"csv_path"`
	DatabaseURL string `json:"-"`
}

// StateConfig controls the position snapshot file. An empty path
// disables it.
type StateConfig struct {
	Path   string   `json:"path"`
	MaxAge Duration `json:"max_age"` // older snapshots are ignored on start
}

// NotificationConfig holds Telegram and Kafka settings. A sink is enabled
// when its credentials or brokers are present.
type NotificationConfig struct {
	TelegramToken  string   `json:"-"`
	TelegramChatID string   `json:"telegram_chat_id,omitempty"`
	KafkaBrokers   []string `json:"kafka_brokers,omitempty"`
	KafkaTopic     string   `json:"kafka_topic"`
	Timeout        Duration `json:"timeout"`
}

// TelegramEnabled reports whether both token and chat are set
func (n NotificationConfig) TelegramEnabled() bool {
	return n.TelegramToken != "" && n.TelegramChatID != ""
}

// KafkaEnabled reports whether at least one broker is set
func (n NotificationConfig) KafkaEnabled() bool {
	return len(n.KafkaBrokers) > 0
}

// ServerConfig controls the status HTTP server
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// LogConfig controls logger construction
type LogConfig struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Default returns a paper-trading configuration for BTCUSDT on 1h bars.
// RiskPercentage stays unset and must come from the file.
func Default() *AgentConfig {
	return &AgentConfig{
		Symbols:      []string{"BTCUSDT"},
		Interval:     "1h",
		CandleLimit:  500,
		PollInterval: Duration{time.Hour},
		Mode:         ModePaper,
		Params:       strategy.DefaultParams(),
		Strategy:     strategy.DefaultConfig(),
		Optimizer: OptimizerConfig{
			OptimizerConfig: backtest.DefaultOptimizerConfig(),
			Candles:         bybit.MaxKlineLimit,
			Bounds:          backtest.DefaultBounds(),
		},
		Exchange: ExchangeConfig{
			Config:      bybit.Config{Demo: true, Category: "spot", RequestsPerSecond: bybit.DefaultRequestsPerSecond},
			LimitOffset: exchange.DefaultLimitOffset,
			Retry: RetryConfig{
				MaxAttempts:   5,
				InitialDelay:  Duration{time.Second},
				MaxDelay:      Duration{30 * time.Second},
				BackoffFactor: 2,
			},
		},
		Ledger: LedgerConfig{CSVPath: "transactions.csv"},
		State:  StateConfig{Path: "state/agent.json", MaxAge: Duration{7 * 24 * time.Hour}},
		Notifications: NotificationConfig{
			KafkaTopic: "swingbot.trades",
			Timeout:    Duration{10 * time.Second},
		},
		Server: ServerConfig{Enabled: true, Addr: ":8080"},
		Log:    LogConfig{Level: "info", Dir: "logs"},
	}
}

// ResolvePath looks up bare names in configs/ and adds the .json extension
func ResolvePath(configFile string) string {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if filepath.Ext(configFile) == "" {
		configFile += ".json"
	}
	return configFile
}

// Load reads configFile over the defaults, applies environment overrides
// and validates the result
func Load(configFile string) (*AgentConfig, error) {
	cfg := Default()
	if configFile != "" {
		data, err := os.ReadFile(ResolvePath(configFile))
		if err != nil {
			return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "Load")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, boterrors.WrapError(fmt.Errorf("failed to parse config file: %w", err),
				boterrors.ErrorCategoryConfiguration, "config", "Load")
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs into the process environment. A
// missing file is not an error, existing variables are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Environment variables read by ApplyEnv
const (
	EnvBybitAPIKey    = "BYBIT_API_KEY"
	EnvBybitAPISecret = "BYBIT_API_SECRET"
	EnvBybitTestnet   = "BYBIT_TESTNET"
	EnvBybitDemo      = "BYBIT_DEMO"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvKafkaBrokers   = "KAFKA_BROKERS"
	EnvTradingMode    = "TRADING_MODE"
	EnvLogLevel       = "LOG_LEVEL"
)

// ApplyEnv overrides secrets and deployment settings from getenv
func (c *AgentConfig) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Exchange.APIKey, EnvBybitAPIKey)
	set(&c.Exchange.APISecret, EnvBybitAPISecret)
	set(&c.Notifications.TelegramToken, EnvTelegramToken)
	set(&c.Notifications.TelegramChatID, EnvTelegramChatID)
	set(&c.Ledger.DatabaseURL, EnvDatabaseURL)
	set(&c.Mode, EnvTradingMode)
	set(&c.Log.Level, EnvLogLevel)

	if v := getenv(EnvBybitTestnet); v != "" {
		c.Exchange.Testnet = parseBool(v)
	}
	if v := getenv(EnvBybitDemo); v != "" {
		c.Exchange.Demo = parseBool(v)
	}
	if v := strings.TrimSpace(getenv(EnvKafkaBrokers)); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Notifications.KafkaBrokers = brokers
	}
	c.Mode = strings.ToLower(c.Mode)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate returns a CONFIG error for the first invalid setting and a
// CREDENTIALS error when live trading has no API keys
func (c *AgentConfig) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return boterrors.NewConfigurationError("config", "Validate", fmt.Sprintf(format, args...))
	}

	if len(c.Symbols) == 0 {
		return fail("at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for i, s := range c.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return fail("symbol %d is empty", i)
		}
		if seen[s] {
			return fail("symbol %s listed twice", s)
		}
		seen[s] = true
		c.Symbols[i] = s
	}
	if _, err := bybit.ParseInterval(c.Interval); err != nil {
		return fail("%v", err)
	}
	if c.CandleLimit <= c.Strategy.WarmupBars || c.CandleLimit > bybit.MaxKlineLimit {
		return fail("candle_limit must be in (%d, %d], got %d", c.Strategy.WarmupBars, bybit.MaxKlineLimit, c.CandleLimit)
	}
	if c.PollInterval.Duration <= 0 {
		return fail("poll_interval must be positive")
	}
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return fail("mode must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	}
	if c.Exchange.LimitOffset < 0 || c.Exchange.LimitOffset >= 1 {
		return fail("limit_offset must be in [0, 1), got %v", c.Exchange.LimitOffset)
	}
	if c.Exchange.Retry.MaxAttempts < 1 {
		return fail("retry.max_attempts must be at least 1")
	}
	if c.Exchange.RequestsPerSecond < 0 {
		return fail("requests_per_second must not be negative")
	}
	if c.State.MaxAge.Duration < 0 {
		return fail("state.max_age must not be negative")
	}

	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.Optimizer.OnStart {
		if err := c.Optimizer.OptimizerConfig.Validate(); err != nil {
			return err
		}
		if err := c.Optimizer.Bounds.Validate(); err != nil {
			return fail("optimizer bounds: %v", err)
		}
		if c.Optimizer.Candles <= c.Strategy.WarmupBars {
			return fail("optimizer candles must exceed warmup_bars (%d)", c.Strategy.WarmupBars)
		}
	}
	if err := c.Params.Validate(); err != nil {
		return fail("params: %v", err)
	}

	if c.Mode == ModeLive && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return boterrors.NewCredentialsError("config", "Validate",
			fmt.Sprintf("live trading requires %s and %s", EnvBybitAPIKey, EnvBybitAPISecret))
	}
	return nil
}

// Duration is a time.Duration that reads and writes strings like "1h30m"
type Duration struct {
	time.Duration
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}
