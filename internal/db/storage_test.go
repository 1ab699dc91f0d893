package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	dbconf "github.com/amirphl/rsicalc/internal/db/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyCandles(symbol, source string, start time.Time, closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
			Symbol:    symbol,
			Timeframe: "1d",
			Source:    source,
		}
	}
	return out
}

// testStorage exercises the Storage contract shared by every backend.
func testStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Save and range query", func(t *testing.T) {
		require.NoError(t, s.SaveCandles(ctx, dailyCandles("AAPL", "yahoo", start, 10, 11, 12, 13)))

		got, err := s.GetCandles(ctx, "AAPL", "1d", "yahoo", start.AddDate(0, 0, 1), start.AddDate(0, 0, 3))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 11.0, got[0].Close)
		assert.Equal(t, 12.0, got[1].Close)
		assert.Equal(t, start.AddDate(0, 0, 1).Unix(), got[0].Timestamp.Unix())
		assert.Equal(t, "yahoo", got[0].Source)
	})

	t.Run("Upsert replaces existing candle", func(t *testing.T) {
		require.NoError(t, s.SaveCandles(ctx, dailyCandles("AAPL", "yahoo", start, 20)))

		got, err := s.GetCandles(ctx, "AAPL", "1d", "yahoo", start, start.AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 20.0, got[0].Close)
	})

	t.Run("Empty source matches all sources", func(t *testing.T) {
		require.NoError(t, s.SaveCandles(ctx, dailyCandles("AAPL", "csv", start.AddDate(0, 0, 10), 30)))

		all, err := s.GetCandles(ctx, "AAPL", "1d", "", start, start.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("Latest candle", func(t *testing.T) {
		latest, err := s.GetLatestCandle(ctx, "AAPL", "1d", "yahoo")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, 13.0, latest.Close)

		none, err := s.GetLatestCandle(ctx, "MSFT", "1d", "")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("Symbols match exactly", func(t *testing.T) {
		got, err := s.GetCandles(ctx, "aapl", "1d", "", start, start.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Empty(t, got)

		latest, err := s.GetLatestCandle(ctx, "aapl", "1d", "yahoo")
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("Invalid candle rejected", func(t *testing.T) {
		bad := dailyCandles("AAPL", "yahoo", start, 10)
		bad[0].Timestamp = time.Time{}
		err := s.SaveCandles(ctx, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "candle timestamp is zero")
	})

	t.Run("Delete", func(t *testing.T) {
		n, err := s.DeleteCandles(ctx, "AAPL", "1d", "csv")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.DeleteCandles(ctx, "AAPL", "1d", "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		got, err := s.GetCandles(ctx, "AAPL", "1d", "", start, start.AddDate(1, 0, 0))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStorage(t *testing.T) {
	testStorage(t, NewMemory())
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Skipf("Skipping test: sqlite unavailable: %v", err)
	}
	defer s.Close()
	testStorage(t, s)
}

func TestPostgresStorage(t *testing.T) {
	cfg, cleanup := dbconf.NewTestConfig(t)
	require.NotNil(t, cfg)
	defer cleanup()

	p, err := New(*cfg)
	require.NoError(t, err)
	testStorage(t, p)
}

func TestPostgres_UsesTransactionFromContext(t *testing.T) {
	cfg, cleanup := dbconf.NewTestConfig(t)
	require.NotNil(t, cfg)
	defer cleanup()

	p, err := New(*cfg)
	require.NoError(t, err)

	tx, err := p.GetDB().Begin()
	require.NoError(t, err)
	ctx := WithTransaction(context.Background(), tx)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.SaveCandles(ctx, dailyCandles("AAPL", "yahoo", start, 10)))
	require.NoError(t, tx.Rollback())

	got, err := p.GetCandles(context.Background(), "AAPL", "1d", "", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, got, "rolled back insert must not be visible")
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Kind: KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	_, err = Open(Options{Kind: "mongo"})
	assert.Error(t, err)

	_, err = Open(Options{Kind: KindSQLite})
	assert.Error(t, err)
}

func TestGetTransaction(t *testing.T) {
	assert.Nil(t, GetTransaction(context.Background()))
}
