package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/rsicalc/internal/calculator"
	"github.com/amirphl/rsicalc/internal/config"
	"github.com/amirphl/rsicalc/internal/indicator"
	"github.com/amirphl/rsicalc/internal/report"
)

var wilderCloses = []float64{
	44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08,
	45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64,
}

func writeQuotes(t *testing.T, dir, symbol string, closes []float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Close\n")
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		fmt.Fprintf(&b, "%s,%.2f\n", day.AddDate(0, 0, i).Format("2006-01-02"), c)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644))
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "rsicalc 0.2\n", out)
}

func TestRun_Usage(t *testing.T) {
	code, _, errOut := runCLI(t, "-log-file", "-")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "no symbols given")

	code, _, _ = runCLI(t, "-period", "abc", "AAPL")
	assert.Equal(t, exitUsage, code)

	code, _, errOut = runCLI(t, "-format", "xml", "AAPL")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "unknown format")

	code, _, _ = runCLI(t, "-h")
	assert.Equal(t, exitOK, code)
}

func TestRun_CSVSource(t *testing.T) {
	dir := t.TempDir()
	writeQuotes(t, dir, "AAPL", wilderCloses)
	writeQuotes(t, dir, "MSFT", wilderCloses[:10])

	base := []string{
		"-log-file", filepath.Join(dir, "rsicalc.log"),
		"-source", "csv",
		"-csv-file", filepath.Join(dir, "{symbol}.csv"),
		"-from", "2024-01-01",
		"-to", "2024-01-20",
		"-format", "csv",
	}

	code, out, errOut := runCLI(t, append(base, "AAPL")...)
	require.Equal(t, exitOK, code, errOut)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"symbol", "date", "close", "rsi", "zone"},
		{"AAPL", "2024-01-20", "45.64", "57.92", string(indicator.Neutral)},
	}, records)

	code, out, _ = runCLI(t, append(base, "-series", "AAPL")...)
	require.Equal(t, exitOK, code)
	records, err = csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, "70.46", records[1][5])

	code, out, errOut = runCLI(t, append(base, "AAPL", "MSFT")...)
	assert.Equal(t, exitError, code)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, errOut, "MSFT")
	assert.Contains(t, errOut, "not enough prices")
}

func TestRun_MigrateNeedsPostgres(t *testing.T) {
	code, _, errOut := runCLI(t, "-migrate", "-log-file", "-", "AAPL")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "-store postgres")
}

func TestRequests(t *testing.T) {
	cfg, err := config.Load([]string{"-from", "2024-01-01", "-to", "2024-01-31", "-refresh", "AAPL", "MSFT"}, io.Discard)
	require.NoError(t, err)

	reqs := requests(cfg)
	require.Len(t, reqs, 2)
	assert.Equal(t, "MSFT", reqs[1].Symbol)
	assert.Equal(t, "yahoo", reqs[0].Source)
	assert.Equal(t, 14, reqs[0].Period)
	assert.True(t, reqs[0].Refresh)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), reqs[0].From)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), reqs[0].To)
	assert.Equal(t, indicator.DefaultThresholds(), reqs[0].Thresholds)

	cfg, err = config.Load([]string{"AAPL"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, requests(cfg)[0].To.IsZero())
}

func TestNewRegistry(t *testing.T) {
	cfg, err := config.Load([]string{"AAPL"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"alphavantage", "wallex", "yahoo"}, newRegistry(cfg).Names())

	cfg.CSVFile = "quotes.csv"
	assert.Equal(t, []string{"alphavantage", "csv", "wallex", "yahoo"}, newRegistry(cfg).Names())
}

func TestRun_BadConfigFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "rsicalc.yaml")
	code, _, errOut := runCLI(t, "-config", missing, "AAPL")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "rsicalc: failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("period: [1"), 0o644))
	code, _, errOut = runCLI(t, "-config", bad, "AAPL")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "failed to parse config file")
}

func TestRun_SingleDayRange(t *testing.T) {
	code, _, errOut := runCLI(t, "-from", "2024-01-10", "-to", "2024-01-10", "-format", "xml", "AAPL")
	assert.Equal(t, exitUsage, code)
	assert.NotContains(t, errOut, "-from")
	assert.Contains(t, errOut, "unknown format")
}

// exclusiveWriter fails the test when two writes overlap.
type exclusiveWriter struct {
	active  atomic.Int32
	overlap atomic.Bool
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (w *exclusiveWriter) Write(p []byte) (int, error) {
	if w.active.Add(1) > 1 {
		w.overlap.Store(true)
	}
	defer w.active.Add(-1)
	time.Sleep(100 * time.Microsecond)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestResultPrinter_SerializesConcurrentResults(t *testing.T) {
	out := &exclusiveWriter{}
	writer, err := report.NewWriter(out, report.FormatTable, false)
	require.NoError(t, err)
	printResult := resultPrinter(writer, io.Discard)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			printResult(calculator.Result{
				Symbol:     fmt.Sprintf("SYM%d", i),
				Timeframe:  "1d",
				Thresholds: indicator.DefaultThresholds(),
				Latest:     indicator.Point{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 10, RSI: 50},
			})
		}(i)
	}
	wg.Wait()

	assert.False(t, out.overlap.Load())
	lines := strings.Split(strings.TrimRight(out.buf.String(), "\n"), "\n")
	require.Len(t, lines, 16)
	for i := 0; i < len(lines); i += 2 {
		assert.True(t, strings.HasPrefix(lines[i], "SYMBOL"), lines[i])
		assert.True(t, strings.HasPrefix(lines[i+1], "SYM"), lines[i+1])
	}
}
