package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewStore(filepath.Join(t.TempDir(), "state", "agent.json"), WithClock(clk)), clk
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Balance: 745.5,
		Symbols: map[string]SymbolState{
			"BTCUSDT": {
				Open:       true,
				EntryPrice: 42000,
				Quantity:   0.006,
				EntryTime:  time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC),
				Params:     strategy.Params{ProfitThreshold: 0.05, TrailingStop: 0.04},
			},
			"ETHUSDT": {Params: strategy.DefaultParams()},
		},
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveAndLoad(t *testing.T) {
	s, clk := newTestStore(t)
	require.NoError(t, s.Save(sampleSnapshot()))
	assert.True(t, s.LastSave().Equal(clk.Now()))

	snap, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, Version, snap.Version)
	assert.Equal(t, 745.5, snap.Balance)
	assert.True(t, snap.LastUpdated.Equal(clk.Now()))

	btc := snap.Symbols["BTCUSDT"].Position()
	assert.Equal(t, strategy.StateLong, btc.State)
	assert.Equal(t, 42000.0, btc.EntryPrice)
	assert.Equal(t, 0.006, btc.Quantity)
	assert.Equal(t, strategy.StateFlat, snap.Symbols["ETHUSDT"].Position().State)
	assert.Equal(t, strategy.DefaultParams(), snap.Symbols["ETHUSDT"].Params)

	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveKeepsBackup(t *testing.T) {
	s, _ := newTestStore(t)
	first := sampleSnapshot()
	require.NoError(t, s.Save(first))

	second := sampleSnapshot()
	second.Balance = 1000
	require.NoError(t, s.Save(second))

	assert.Equal(t, filepath.Join(filepath.Dir(s.Path()), "agent_backup.json"), s.BackupPath())
	raw, err := os.ReadFile(s.BackupPath())
	require.NoError(t, err)
	var backup Snapshot
	require.NoError(t, json.Unmarshal(raw, &backup))
	assert.Equal(t, 745.5, backup.Balance)

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.Balance)
}

func TestLoadIgnoresStaleState(t *testing.T) {
	s, clk := newTestStore(t)
	require.NoError(t, s.Save(sampleSnapshot()))

	clk.Add(DefaultMaxAge + time.Hour)
	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	lenient := NewStore(s.Path(), WithClock(clk), WithMaxAge(0))
	snap, err = lenient.Load()
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestLoadRejectsInvalidState(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))

	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))
	_, err := s.Load()
	assert.Error(t, err)

	bad := `{"version":"1","last_updated":"2024-05-01T11:00:00Z","symbols":{"BTCUSDT":{"open":true,"quantity":1}}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(bad), 0o644))
	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	old := `{"version":"0","last_updated":"2024-05-01T11:00:00Z"}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(old), 0o644))
	snap, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}
