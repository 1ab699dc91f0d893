package candle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create daily test candles from closes
func createTestCandles(symbol string, start time.Time, closes []float64) []Candle {
	candles := make([]Candle, len(closes))
	for i, c := range closes {
		candles[i] = Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
			Symbol:    symbol,
			Timeframe: "1d",
			Source:    "test",
		}
	}
	return candles
}

func TestCandle_Validate(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	valid := Candle{Timestamp: now, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1, Symbol: "AAPL", Timeframe: "1d"}

	tests := []struct {
		name    string
		mutate  func(c *Candle)
		wantErr string
	}{
		{"valid", func(c *Candle) {}, ""},
		{"close only", func(c *Candle) { c.Open, c.High, c.Low = 0, 0, 0 }, ""},
		{"zero timestamp", func(c *Candle) { c.Timestamp = time.Time{} }, "candle timestamp is zero"},
		{"zero close", func(c *Candle) { c.Close = 0 }, "candle close price must be positive"},
		{"negative open", func(c *Candle) { c.Open = -1 }, "candle prices cannot be negative"},
		{"high below low", func(c *Candle) { c.High = 8 }, "candle high cannot be less than low"},
		{"close above high", func(c *Candle) { c.Close = 12 }, "candle close price must be between high and low"},
		{"negative volume", func(c *Candle) { c.Volume = -1 }, "candle volume cannot be negative"},
		{"empty symbol", func(c *Candle) { c.Symbol = "" }, "candle symbol cannot be empty"},
		{"empty timeframe", func(c *Candle) { c.Timeframe = "" }, "candle timeframe cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCandle_IsComplete(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	c := Candle{Timestamp: ts, Timeframe: "1d"}
	assert.False(t, c.IsComplete(ts.Add(23*time.Hour)))
	assert.True(t, c.IsComplete(ts.Add(24*time.Hour)))
}

func TestCloses(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := createTestCandles("AAPL", start, []float64{1, 2, 3})
	assert.Equal(t, []float64{1, 2, 3}, Closes(candles))
	assert.Empty(t, Closes(nil))
}

func TestNormalize(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sorts and deduplicates keeping last", func(t *testing.T) {
		candles := createTestCandles("AAPL", start, []float64{10, 11, 12})
		dup := candles[1]
		dup.Close, dup.High = 11.5, 11.5
		input := []Candle{candles[2], candles[0], candles[1], dup}

		out, err := Normalize(input)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, []float64{10, 11.5, 12}, Closes(out))
		assert.True(t, out[0].Timestamp.Before(out[1].Timestamp))
	})

	t.Run("drops invalid candles", func(t *testing.T) {
		candles := createTestCandles("AAPL", start, []float64{10, 11})
		candles[0].Close = 0
		out, err := Normalize(candles)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Normalize(nil)
		assert.ErrorIs(t, err, ErrEmptySeries)
	})
}

func TestTailAndBetween(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := createTestCandles("AAPL", start, []float64{1, 2, 3, 4, 5})

	assert.Equal(t, []float64{4, 5}, Closes(Tail(candles, 2)))
	assert.Len(t, Tail(candles, 10), 5)
	assert.Nil(t, Tail(candles, 0))

	got := Between(candles, start.AddDate(0, 0, 1), start.AddDate(0, 0, 3))
	assert.Equal(t, []float64{2, 3}, Closes(got))
	assert.Nil(t, Between(candles, start.AddDate(0, 0, 10), start.AddDate(0, 0, 11)))
}
