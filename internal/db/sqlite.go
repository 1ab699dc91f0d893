package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirphl/rsicalc/internal/utils"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol     TEXT    NOT NULL,
	timeframe  TEXT    NOT NULL,
	ts         INTEGER NOT NULL,
	open       REAL    NOT NULL DEFAULT 0,
	high       REAL    NOT NULL DEFAULT 0,
	low        REAL    NOT NULL DEFAULT 0,
	close      REAL    NOT NULL,
	volume     REAL    NOT NULL DEFAULT 0,
	source     TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	PRIMARY KEY (symbol, timeframe, ts, source)
);
`

// SQLite is a single-file candle store. Timestamps are kept as unix seconds.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path with WAL mode and the candle schema.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	utils.GetLogger().Printf("Store | sqlite opened database at %s", path)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) SaveCandles(ctx context.Context, candles []Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if err := validateAll(candles); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, ts, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, ts, source) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume, fetched_at=strftime('%s', 'now')`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.Symbol, c.Timeframe, c.Timestamp.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Source); err != nil {
			return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=? AND timeframe=? AND ts >= ? AND ts < ?`
	args := []any{symbol, timeframe, start.Unix(), end.Unix()}
	if source != "" {
		query += " AND source=?"
		args = append(args, source)
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles in range: %w", err)
	}
	defer rows.Close()

	var candles []Candle
	for rows.Next() {
		c, err := scanSQLiteCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}
	return candles, nil
}

func (s *SQLite) GetLatestCandle(ctx context.Context, symbol, timeframe, source string) (*Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=? AND timeframe=?`
	args := []any{symbol, timeframe}
	if source != "" {
		query += " AND source=?"
		args = append(args, source)
	}
	query += " ORDER BY ts DESC LIMIT 1"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	c, err := scanSQLiteCandle(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLite) DeleteCandles(ctx context.Context, symbol, timeframe, source string) (int64, error) {
	query := `DELETE FROM candles WHERE symbol=? AND timeframe=?`
	args := []any{symbol, timeframe}
	if source != "" {
		query += " AND source=?"
		args = append(args, source)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete candles: %w", err)
	}
	return res.RowsAffected()
}

func scanSQLiteCandle(rows *sql.Rows) (Candle, error) {
	var c Candle
	var ts int64
	if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
		return Candle{}, fmt.Errorf("failed to scan candle: %w", err)
	}
	c.Timestamp = time.Unix(ts, 0).UTC()
	return c, nil
}
