package quote

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		closes []float64
		open0  float64
	}{
		{
			name:   "header with adj close",
			input:  "Date,Open,High,Low,Close,Adj Close,Volume\n2024-01-02,10,11,9,10.5,10.4,100\n2024-01-03,10.5,12,10,11.5,11.4,200\n",
			closes: []float64{10.5, 11.5},
			open0:  10,
		},
		{
			name:   "headerless date close",
			input:  "2024-01-02,10\n2024-01-03,11\n2024-01-04,12\n",
			closes: []float64{10, 11, 12},
		},
		{
			name:   "headerless ohlc",
			input:  "2024-01-02,10,11,9,10.5\n",
			closes: []float64{10.5},
			open0:  10,
		},
		{
			name:   "rfc3339 and blank lines",
			input:  "timestamp,price\n2024-01-02T15:00:00Z,7\n\n2024-01-02T16:00:00Z,8\n",
			closes: []float64{7, 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles, err := ReadCSV(strings.NewReader(tt.input), "abc", "1d")
			require.NoError(t, err)
			require.Len(t, candles, len(tt.closes))
			for i, c := range tt.closes {
				assert.Equal(t, c, candles[i].Close)
			}
			assert.Equal(t, tt.open0, candles[0].Open)
			assert.Equal(t, "ABC", candles[0].Symbol)
		})
	}
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("foo,bar\n1,2\n"), "X", "1d")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("2024-01-02,10,11,9\n"), "X", "1d")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("2024-01-02,abc\n"), "X", "1d")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("Date,Close\n"), "X", "1d")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCSVFile_FetchCandles(t *testing.T) {
	dir := t.TempDir()
	body := "Date,Close\n2024-01-01,10\n2024-01-02,11\n2024-01-03,12\n2024-01-04,13\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(body), 0o644))

	src := NewCSVFile(filepath.Join(dir, "{symbol}.csv"))
	assert.Equal(t, "csv", src.Name())

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles, err := src.FetchCandles(context.Background(), "AAPL", "1d", start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 11.0, candles[0].Close)
	assert.Equal(t, "csv", candles[0].Source)

	all, err := src.FetchCandles(context.Background(), "AAPL", "1d", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = src.FetchCandles(context.Background(), "MSFT", "1d", start, start.AddDate(0, 0, 2))
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}
