package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordTradeAndProfit(t *testing.T) {
	before := testutil.ToFloat64(tradesTotal.WithLabelValues("TESTUSDT", "Buy"))
	RecordTrade("TESTUSDT", "Buy", 250)
	assert.Equal(t, before+1, testutil.ToFloat64(tradesTotal.WithLabelValues("TESTUSDT", "Buy")))

	AddRealizedProfit("TESTUSDT", 12.5)
	AddRealizedProfit("TESTUSDT", -2.5)
	assert.Equal(t, 10.0, testutil.ToFloat64(realizedProfit.WithLabelValues("TESTUSDT")))

	SetPositionOpen("TESTUSDT", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(positionOpen.WithLabelValues("TESTUSDT")))
	SetPositionOpen("TESTUSDT", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(positionOpen.WithLabelValues("TESTUSDT")))
}

func TestMetrics_GaugesAndCounters(t *testing.T) {
	UpdatePrice("GAUGEUSDT", 101.5)
	assert.Equal(t, 101.5, testutil.ToFloat64(currentPrice.WithLabelValues("GAUGEUSDT")))

	SetMLGateActive("GAUGEUSDT", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(mlGateActive.WithLabelValues("GAUGEUSDT")))

	SetOptimizerBest("GAUGEUSDT", 90)
	assert.Equal(t, 90.0, testutil.ToFloat64(optimizerBestObjective.WithLabelValues("GAUGEUSDT")))

	RecordSkip("GAUGEUSDT", "data_fetch")
	assert.Equal(t, 1.0, testutil.ToFloat64(skippedTotal.WithLabelValues("GAUGEUSDT", "data_fetch")))

	before := testutil.ToFloat64(errorsTotal.WithLabelValues("UNKNOWN"))
	RecordError("")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("UNKNOWN")))

	ObserveCycle(0.2)
	assert.Equal(t, 1, testutil.CollectAndCount(cycleDuration))
	assert.NotNil(t, Handler())
}

func TestHealthChecker_Status(t *testing.T) {
	clk := clock.NewMock()
	h := NewHealthChecker(clk, 2*time.Hour)

	assert.Equal(t, "degraded", h.Status().Status, "no cycle yet")

	h.RecordPrice("BTCUSDT", 60000)
	h.RecordCycle(true)
	status := h.Status()
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 60000.0, status.LastPrices["BTCUSDT"])

	clk.Add(3 * time.Hour)
	assert.Equal(t, "degraded", h.Status().Status, "stale")
	assert.Equal(t, "3h0m0s", h.Status().Uptime)

	h.RecordError(errors.New("klines unavailable"))
	h.RecordCycle(false)
	status = h.Status()
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, []string{"klines unavailable"}, status.Errors)

	h.RecordCycle(true)
	assert.Equal(t, "healthy", h.Status().Status)
	assert.Empty(t, h.Status().Errors)
}

func TestHealthChecker_KeepsRecentErrors(t *testing.T) {
	h := NewHealthChecker(clock.NewMock(), 0)
	for i := 0; i < maxRecentErrors+5; i++ {
		h.RecordError(errors.New("boom"))
	}
	h.RecordError(nil)
	assert.Len(t, h.Status().Errors, maxRecentErrors)
}
