package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval4h  KlineInterval = "240"
	Interval1d  KlineInterval = "D"
)

// MaxKlineLimit is the largest page Bybit serves
const MaxKlineLimit = 1000

var intervalAliases = map[string]KlineInterval{
	"1m": Interval1m, "5m": Interval5m, "15m": Interval15m, "30m": Interval30m,
	"1h": Interval1h, "4h": Interval4h, "1d": Interval1d,
}

// ParseInterval accepts both exchange codes ("60") and short forms ("1h")
func ParseInterval(s string) (KlineInterval, error) {
	if iv, ok := intervalAliases[strings.ToLower(s)]; ok {
		return iv, nil
	}
	for _, iv := range intervalAliases {
		if string(iv) == strings.ToUpper(s) {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Duration returns the length of one bar
func (k KlineInterval) Duration() time.Duration {
	switch k {
	case Interval1d:
		return 24 * time.Hour
	}
	var minutes int
	fmt.Sscanf(string(k), "%d", &minutes)
	return time.Duration(minutes) * time.Minute
}

// GetCandles fetches up to limit klines in ascending time order. Bybit
// returns the newest kline first, so the list is sorted before use.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	return c.GetCandlesRange(ctx, symbol, interval, limit, nil, nil)
}

// GetCandlesRange is GetCandles bounded by optional start and end times
func (c *Client) GetCandlesRange(ctx context.Context, symbol, interval string, limit int, start, end *time.Time) ([]types.OHLCV, error) {
	iv, err := ParseInterval(interval)
	if err != nil {
		return nil, classify("GetCandles", endpointKline, err)
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": string(iv),
		"limit":    limit,
	}
	if start != nil {
		params["start"] = start.UnixMilli()
	}
	if end != nil {
		params["end"] = end.UnixMilli()
	}

	resp, err := c.do(ctx, endpointKline, params)
	if err == nil {
		var bars []types.OHLCV
		bars, err = parseKlines(resp)
		if err == nil {
			c.logger.Debug("klines fetched", zap.String("symbol", symbol), zap.Int("count", len(bars)))
			return bars, nil
		}
	}
	return nil, classify("GetCandles", endpointKline, err)
}

// DropForming removes the last bar when it has not closed by now
func DropForming(bars []types.OHLCV, interval KlineInterval, now time.Time) []types.OHLCV {
	if n := len(bars); n > 0 && bars[n-1].Timestamp.Add(interval.Duration()).After(now) {
		return bars[:n-1]
	}
	return bars
}

// GetHistory pages backwards from end until total klines are collected or
// the venue has no older data. A zero end means now.
func (c *Client) GetHistory(ctx context.Context, symbol, interval string, total int, end time.Time) ([]types.OHLCV, error) {
	if total <= 0 {
		return nil, nil
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	var history []types.OHLCV
	cursor := end
	for len(history) < total {
		want := total - len(history)
		if want > MaxKlineLimit {
			want = MaxKlineLimit
		}
		page, err := c.GetCandlesRange(ctx, symbol, interval, want, nil, &cursor)
		if err != nil {
			return nil, err
		}
		if len(history) > 0 {
			oldest := history[0].Timestamp
			k := len(page)
			for k > 0 && !page[k-1].Timestamp.Before(oldest) {
				k--
			}
			page = page[:k]
		}
		if len(page) == 0 {
			break
		}
		history = append(page, history...)
		cursor = page[0].Timestamp.Add(-time.Millisecond)
		if len(page) < want {
			break
		}
	}

	if len(history) > total {
		history = history[len(history)-total:]
	}
	c.logger.Info("history fetched",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("count", len(history)))
	return history, nil
}

// GetTicker returns the last traded price
func (c *Client) GetTicker(ctx context.Context, symbol string) (*types.Ticker, error) {
	resp, err := c.do(ctx, endpointTickers, map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	})
	if err == nil {
		var ticker *types.Ticker
		ticker, err = parseTicker(resp, symbol)
		if err == nil {
			return ticker, nil
		}
	}
	return nil, classify("GetTicker", endpointTickers, err)
}

// parseKlines converts [startTime, open, high, low, close, volume, turnover]
// rows into ascending bars, dropping repeated start times
func parseKlines(resp *bybit_api.ServerResponse) ([]types.OHLCV, error) {
	var result struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := decode(resp, &result); err != nil {
		return nil, err
	}

	bars := make([]types.OHLCV, 0, len(result.List))
	for i, item := range result.List {
		if len(item) < 6 {
			return nil, fmt.Errorf("kline %d has %d fields", i, len(item))
		}
		values := make([]float64, 5)
		for k := range values {
			v, err := strconv.ParseFloat(item[k+1], 64)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, k+1, err)
			}
			values[k] = v
		}
		startMs, err := strconv.ParseInt(item[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("kline %d start time: %w", i, err)
		}
		bars = append(bars, types.OHLCV{
			Timestamp: time.UnixMilli(startMs).UTC(),
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	unique := bars[:0]
	for _, b := range bars {
		if len(unique) > 0 && b.Timestamp.Equal(unique[len(unique)-1].Timestamp) {
			continue
		}
		unique = append(unique, b)
	}
	return unique, nil
}

func parseTicker(resp *bybit_api.ServerResponse, symbol string) (*types.Ticker, error) {
	var result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	}
	if err := decode(resp, &result); err != nil {
		return nil, err
	}

	for _, item := range result.List {
		if item.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(item.LastPrice, 64)
		if err != nil {
			return nil, fmt.Errorf("ticker %s last price: %w", symbol, err)
		}
		return &types.Ticker{
			Symbol:    symbol,
			Price:     price,
			Volume:    parseFloat64(item.Volume24h),
			Timestamp: time.Now().UTC(),
		}, nil
	}
	return nil, fmt.Errorf("no ticker data found for %s", symbol)
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
