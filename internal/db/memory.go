package db

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStorage struct {
	mu sync.RWMutex

	// Candles keyed by symbol|timeframe|timestamp|source
	candles map[string]Candle
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		candles: make(map[string]Candle),
	}
}

func candleKey(symbol, timeframe string, ts time.Time, source string) string {
	return symbol + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + source
}

func (m *MemoryStorage) SaveCandles(ctx context.Context, candles []Candle) error {
	if err := validateAll(candles); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		c.Timestamp = c.Timestamp.UTC()
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp, c.Source)] = c
	}
	return nil
}

func (m *MemoryStorage) matches(c Candle, symbol, timeframe, source string) bool {
	if c.Symbol != symbol || c.Timeframe != timeframe {
		return false
	}
	return source == "" || c.Source == source
}

func (m *MemoryStorage) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start = start.UTC()
	end = end.UTC()
	var out []Candle
	for _, c := range m.candles {
		if !m.matches(c, symbol, timeframe, source) {
			continue
		}
		if !c.Timestamp.Before(start) && c.Timestamp.Before(end) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) GetLatestCandle(ctx context.Context, symbol, timeframe, source string) (*Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Candle
	for _, c := range m.candles {
		if !m.matches(c, symbol, timeframe, source) {
			continue
		}
		if latest == nil || c.Timestamp.After(latest.Timestamp) {
			cc := c
			latest = &cc
		}
	}
	return latest, nil
}

func (m *MemoryStorage) DeleteCandles(ctx context.Context, symbol, timeframe, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, c := range m.candles {
		if m.matches(c, symbol, timeframe, source) {
			delete(m.candles, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) Close() error { return nil }
