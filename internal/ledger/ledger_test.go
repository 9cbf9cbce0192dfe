package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []Entry{
		{Time: at, Action: ActionBuy, Symbol: "BTCUSDT", Price: 60000, Quantity: 0.0041, RemainingBalance: 754},
		{Time: at.Add(3 * time.Hour), Action: ActionSell, Symbol: "BTCUSDT", Price: 61800, PctChange: 3, Quantity: 0.0041, RemainingBalance: 1007.38},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVLedger_WritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "transactions.csv")
	entries := sampleEntries()

	l, err := NewCSVLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(context.Background(), entries[0]))
	require.NoError(t, l.Close())

	l, err = NewCSVLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(context.Background(), entries[1]))
	require.NoError(t, l.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"2024-05-01T10:00:00Z", "BUY", "BTCUSDT", "60000", "0.0000", "0.0041", "754.00"}, rows[1])
	assert.Equal(t, []string{"2024-05-01T13:00:00Z", "SELL", "BTCUSDT", "61800", "3.0000", "0.0041", "1007.38"}, rows[2])
}

func TestPostgresLedger_EnsureSchemaAndAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS transactions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	e := sampleEntries()[1]
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(e.Time, "SELL", "BTCUSDT", 61800.0, 3.0, 0.0041, 1007.38).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	l := NewPostgresLedger(db)
	require.NoError(t, l.EnsureSchema(context.Background()))
	require.NoError(t, l.Append(context.Background(), e))
	require.NoError(t, l.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_AppendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO transactions").WillReturnError(errors.New("connection lost"))

	err = NewPostgresLedger(db).Append(context.Background(), sampleEntries()[0])
	assert.ErrorContains(t, err, "connection lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingLedger struct {
	appended int
}

func (f *failingLedger) Append(context.Context, Entry) error {
	f.appended++
	return errors.New("sink down")
}

func (f *failingLedger) Close() error { return nil }

func TestMulti_AppendsToEverySink(t *testing.T) {
	first, second := &failingLedger{}, &failingLedger{}
	err := Multi{first, second}.Append(context.Background(), sampleEntries()[0])

	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 1, first.appended)
	assert.Equal(t, 1, second.appended)
	assert.NoError(t, Multi{first}.Close())
}
