package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
	"github.com/shopspring/decimal"
	wallex "github.com/wallexchange/wallex-go"
)

// wallexClient is the subset of the wallex-go client used here.
type wallexClient interface {
	Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error)
}

// Wallex fetches crypto market candles from the Wallex exchange.
type Wallex struct {
	client   wallexClient
	attempts int
	delay    time.Duration
}

func NewWallex(apiKey string) *Wallex {
	return &Wallex{
		client:   wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		attempts: 3,
		delay:    2 * time.Second,
	}
}

func (w *Wallex) Name() string {
	return "wallex"
}

// NormalizeSymbol turns "btc-usdt" into the exchange form "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// wallexResolution maps a timeframe to the exchange's TradingView style resolution.
func wallexResolution(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h":
		return "60", nil
	case "4h":
		return "240", nil
	case "1d":
		return "1D", nil
	case "1w":
		return "1W", nil
	default:
		return "", fmt.Errorf("%w: wallex does not serve %s", ErrUnsupportedTimeframe, timeframe)
	}
}

func (w *Wallex) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	resolution, err := wallexResolution(timeframe)
	if err != nil {
		return nil, err
	}
	normalizedSymbol := NormalizeSymbol(symbol)

	var wallexCandles []*wallex.Candle
	err = retry(ctx, w.Name(), w.attempts, w.delay, func() error {
		var err error
		wallexCandles, err = w.client.Candles(normalizedSymbol, resolution, start, end)
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wallex %s: %w", symbol, err)
	}

	return finish(wallexToCandles(wallexCandles, symbol, timeframe), start, end)
}

func wallexToCandles(wallexCandles []*wallex.Candle, symbol, timeframe string) []candle.Candle {
	candles := make([]candle.Candle, 0, len(wallexCandles))
	for _, wc := range wallexCandles {
		if wc == nil {
			continue
		}
		candles = append(candles, candle.Candle{
			Timestamp: wc.Timestamp.UTC(),
			Open:      parseNumber(wc.Open),
			High:      parseNumber(wc.High),
			Low:       parseNumber(wc.Low),
			Close:     parseNumber(wc.Close),
			Volume:    parseNumber(wc.Volume),
			Symbol:    strings.ToUpper(symbol),
			Timeframe: timeframe,
			Source:    "wallex",
		})
	}
	return candles
}

// parseNumber converts a wallex.Number, yielding 0 for malformed input so the
// candle fails validation downstream.
func parseNumber(n wallex.Number) float64 {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
