package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

// Metrics are the headline numbers of one backtest run
type Metrics struct {
	TotalProfit float64 `json:"total_profit"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// Summary adds trade statistics to Metrics for reporting
type Summary struct {
	Metrics
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
}

// PerformanceTracker accumulates realized trades of a single run. A new
// tracker must be used for every run.
type PerformanceTracker struct {
	totalProfit float64
	peakProfit  float64
	maxDrawdown float64
	returns     []float64
	trades      []strategy.Trade
}

// NewPerformanceTracker returns an empty tracker
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{}
}

// OnTrade records a realized trade and updates the drawdown of the
// cumulative profit curve. Drawdown is measured against the running peak
// and is zero until that peak is positive.
func (pt *PerformanceTracker) OnTrade(trade strategy.Trade) {
	pt.trades = append(pt.trades, trade)
	pt.returns = append(pt.returns, trade.ReturnPct)

	pt.totalProfit += trade.Profit
	pt.peakProfit = math.Max(pt.peakProfit, pt.totalProfit)

	drawdown := 0.0
	if pt.peakProfit > 0 {
		drawdown = (pt.peakProfit - pt.totalProfit) / pt.peakProfit
	}
	pt.maxDrawdown = math.Max(pt.maxDrawdown, drawdown)
}

// MaxDrawdown returns the largest drawdown seen so far
func (pt *PerformanceTracker) MaxDrawdown() float64 {
	return pt.maxDrawdown
}

// Trades returns the realized trades in order
func (pt *PerformanceTracker) Trades() []strategy.Trade {
	return append([]strategy.Trade(nil), pt.trades...)
}

// Returns returns the per-trade returns in order
func (pt *PerformanceTracker) Returns() []float64 {
	return append([]float64(nil), pt.returns...)
}

// Finalize computes the headline metrics
func (pt *PerformanceTracker) Finalize() Metrics {
	return Metrics{
		TotalProfit: pt.totalProfit,
		MaxDrawdown: pt.maxDrawdown,
		SharpeRatio: CalculateSharpeRatio(pt.returns),
	}
}

// Summary computes Finalize plus win rate and profit factor
func (pt *PerformanceTracker) Summary() Summary {
	s := Summary{Metrics: pt.Finalize(), TotalTrades: len(pt.trades)}
	for _, t := range pt.trades {
		if t.Profit > 0 {
			s.WinningTrades++
			s.GrossProfit += t.Profit
		} else {
			s.LosingTrades++
			s.GrossLoss += math.Abs(t.Profit)
		}
	}
	s.WinRate = CalculateWinRate(s.WinningTrades, s.TotalTrades)
	s.ProfitFactor = CalculateProfitFactor(s.GrossProfit, s.GrossLoss)
	return s
}

// CalculateSharpeRatio is mean/std of per-trade returns using the
// population standard deviation, without annualization. It is zero for no
// returns or a (near) zero deviation, which covers a single trade.
func CalculateSharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, stdDev := stat.PopMeanStdDev(returns, nil)
	if stdDev < 1e-10 || math.IsNaN(stdDev) {
		return 0
	}
	return mean / stdDev
}

// CalculateProfitFactor is gross profit over gross loss. Without losses it
// is +Inf when there was any profit and zero otherwise.
func CalculateProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// CalculateWinRate returns the percentage of winning trades
func CalculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}
