package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swingbot_trades_total",
			Help: "Total number of filled orders",
		},
		[]string{"symbol", "side"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swingbot_trade_notional",
			Help:    "Distribution of filled order notional in quote currency",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"symbol"},
	)

	realizedProfit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingbot_realized_profit",
			Help: "Cumulative realized profit per symbol",
		},
		[]string{"symbol"},
	)

	positionOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingbot_position_open",
			Help: "1 while a long position is held",
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingbot_current_price",
			Help: "Close of the last evaluated bar",
		},
		[]string{"symbol"},
	)

	// Strategy metrics
	mlGateActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingbot_ml_gate_active",
			Help: "1 when a classifier could be fitted for the symbol",
		},
		[]string{"symbol"},
	)

	optimizerBestObjective = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingbot_optimizer_best_objective",
			Help: "Best total profit found by the last optimization",
		},
		[]string{"symbol"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swingbot_cycle_duration_seconds",
			Help:    "Duration of one decision cycle over all symbols",
			Buckets: prometheus.DefBuckets,
		},
	)

	skippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swingbot_skipped_total",
			Help: "Symbols skipped in a cycle, by reason",
		},
		[]string{"symbol", "reason"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swingbot_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		tradesTotal,
		tradeNotional,
		realizedProfit,
		positionOpen,
		currentPrice,
		mlGateActive,
		optimizerBestObjective,
		cycleDuration,
		skippedTotal,
		errorsTotal,
	)
}

// Handler serves the default Prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records a filled order
func RecordTrade(symbol, side string, notional float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeNotional.WithLabelValues(symbol).Observe(notional)
}

// AddRealizedProfit adds the profit of a closed trade
func AddRealizedProfit(symbol string, profit float64) {
	realizedProfit.WithLabelValues(symbol).Add(profit)
}

// SetPositionOpen flags whether symbol is held
func SetPositionOpen(symbol string, open bool) {
	positionOpen.WithLabelValues(symbol).Set(boolGauge(open))
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// SetMLGateActive flags whether the classifier gate is in use for symbol
func SetMLGateActive(symbol string, active bool) {
	mlGateActive.WithLabelValues(symbol).Set(boolGauge(active))
}

// SetOptimizerBest records the objective of the chosen parameters
func SetOptimizerBest(symbol string, objective float64) {
	optimizerBestObjective.WithLabelValues(symbol).Set(objective)
}

// ObserveCycle records how long a cycle took
func ObserveCycle(seconds float64) {
	cycleDuration.Observe(seconds)
}

// RecordSkip counts a symbol skipped for reason
func RecordSkip(symbol, reason string) {
	skippedTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordError records an error metric
func RecordError(category string) {
	if category == "" {
		category = "UNKNOWN"
	}
	errorsTotal.WithLabelValues(category).Inc()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
