package quote

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
)

// CSVFile reads bars from a local CSV file. The path may contain "{symbol}",
// which is replaced by the requested symbol.
//
// Accepted layouts: a header row naming date/open/high/low/close/volume
// columns in any order, or headerless "date,close" and
// "date,open,high,low,close[,volume]".
type CSVFile struct {
	path string
}

func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

func (c *CSVFile) Name() string { return "csv" }

func (c *CSVFile) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	if c.path == "" {
		return nil, errors.New("csv: no file configured")
	}
	path := strings.ReplaceAll(c.path, "{symbol}", symbol)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("csv %s: %w", path, ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer f.Close()

	candles, err := ReadCSV(f, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", path, err)
	}
	for i := range candles {
		candles[i].Source = c.Name()
	}
	return finish(candles, start, end)
}

type csvColumns struct {
	date, open, high, low, close, volume int
}

func headerColumns(row []string) (csvColumns, bool) {
	cols := csvColumns{-1, -1, -1, -1, -1, -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "time", "timestamp", "datetime":
			cols.date = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close", "adj close", "adj_close", "price":
			if cols.close < 0 || strings.HasPrefix(strings.ToLower(name), "close") {
				cols.close = i
			}
		case "volume":
			cols.volume = i
		}
	}
	return cols, cols.date >= 0 && cols.close >= 0
}

func positionalColumns(n int) (csvColumns, error) {
	switch {
	case n == 2:
		return csvColumns{date: 0, open: -1, high: -1, low: -1, close: 1, volume: -1}, nil
	case n == 5:
		return csvColumns{date: 0, open: 1, high: 2, low: 3, close: 4, volume: -1}, nil
	case n >= 6:
		return csvColumns{date: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}, nil
	default:
		return csvColumns{}, fmt.Errorf("unsupported column count %d", n)
	}
}

// ReadCSV parses bars from r in one of the layouts CSVFile accepts.
func ReadCSV(r io.Reader, symbol, timeframe string) ([]candle.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		cols    csvColumns
		haveCol bool
		out     []candle.Candle
		line    int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !haveCol {
			if _, err := parseCSVTime(row[0]); err != nil {
				var ok bool
				cols, ok = headerColumns(row)
				if !ok {
					return nil, fmt.Errorf("line %d: header needs date and close columns", line)
				}
				haveCol = true
				continue
			}
			cols, err = positionalColumns(len(row))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			haveCol = true
		}

		c, err := csvRow(row, cols, symbol, timeframe)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func csvRow(row []string, cols csvColumns, symbol, timeframe string) (candle.Candle, error) {
	field := func(i int) (float64, error) {
		if i < 0 || i >= len(row) || strings.TrimSpace(row[i]) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	}
	if cols.date >= len(row) {
		return candle.Candle{}, errors.New("missing date")
	}
	ts, err := parseCSVTime(row[cols.date])
	if err != nil {
		return candle.Candle{}, err
	}
	c := candle.Candle{Timestamp: ts, Symbol: strings.ToUpper(symbol), Timeframe: timeframe}
	for _, f := range []struct {
		idx int
		dst *float64
	}{
		{cols.open, &c.Open},
		{cols.high, &c.High},
		{cols.low, &c.Low},
		{cols.close, &c.Close},
		{cols.volume, &c.Volume},
	} {
		v, err := field(f.idx)
		if err != nil {
			return candle.Candle{}, err
		}
		*f.dst = v
	}
	return c, nil
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
