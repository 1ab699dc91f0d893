// Package db persists fetched candles so repeated runs do not refetch history.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
)

type Candle = candle.Candle

// Storage is the interface for candle persistence. Symbols, timeframes and
// sources are matched exactly, so callers pass symbols in canonical case.
type Storage interface {
	SaveCandles(ctx context.Context, candles []Candle) error
	// GetCandles returns candles with start <= timestamp < end ordered by time.
	// An empty source matches every source.
	GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]Candle, error)
	// GetLatestCandle returns nil when nothing is stored.
	GetLatestCandle(ctx context.Context, symbol, timeframe, source string) (*Candle, error)
	DeleteCandles(ctx context.Context, symbol, timeframe, source string) (int64, error)
	Close() error
}

const (
	KindMemory   = "memory"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// Options configures Open.
type Options struct {
	Kind    string
	DSN     string
	MaxOpen int
	MaxIdle int
}

// Open returns the storage backend named by opts.Kind.
func Open(opts Options) (Storage, error) {
	switch opts.Kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindSQLite:
		return NewSQLite(opts.DSN)
	case KindPostgres:
		return NewPostgres(opts.DSN, opts.MaxOpen, opts.MaxIdle)
	default:
		return nil, fmt.Errorf("unknown store %q", opts.Kind)
	}
}

func validateAll(candles []Candle) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}
	return nil
}
