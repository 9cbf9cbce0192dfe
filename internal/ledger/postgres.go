package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const createTransactionsTable = `CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	executed_at TIMESTAMPTZ NOT NULL,
	action TEXT NOT NULL,
	symbol TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	change_pct DOUBLE PRECISION NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	remaining_balance DOUBLE PRECISION NOT NULL
)`

const insertTransaction = `INSERT INTO transactions
	(executed_at, action, symbol, price, change_pct, quantity, remaining_balance)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// PostgresLedger stores entries in the transactions table
type PostgresLedger struct {
	db *sql.DB
}

// OpenPostgres connects with the lib/pq driver and ensures the schema
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	l := NewPostgresLedger(db)
	if err := l.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLedger uses an open database handle
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureSchema creates the transactions table if it is missing
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createTransactionsTable); err != nil {
		return fmt.Errorf("failed to create transactions table: %w", err)
	}
	return nil
}

// Append inserts e
func (l *PostgresLedger) Append(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, insertTransaction,
		e.Time.UTC(), string(e.Action), e.Symbol, e.Price, e.PctChange, e.Quantity, e.RemainingBalance)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Close closes the database handle
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}
