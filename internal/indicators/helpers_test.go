package indicators

import (
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

func generateFlatData(count int, price float64) []types.OHLCV {
	data := make([]types.OHLCV, count)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		data[i] = types.OHLCV{
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return data
}

func generateTrendData(count int, base, step float64) []types.OHLCV {
	data := generateFlatData(count, base)
	for i := range data {
		price := base + step*float64(i)
		data[i].Open = price
		data[i].High = price + 1
		data[i].Low = price - 1
		data[i].Close = price
	}
	return data
}
