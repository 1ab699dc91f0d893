package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
	"github.com/amirphl/rsicalc/internal/tfutils"
)

const (
	yahooBaseURL   = "https://query1.finance.yahoo.com"
	yahooUserAgent = "Mozilla/5.0 (compatible; rsicalc/0.2)"
)

// YahooChartResponse is the top-level container of the v8 chart API
type YahooChartResponse struct {
	Chart ChartData `json:"chart"`
}

type ChartData struct {
	Result []ChartResult `json:"result"`
	Error  *ChartError   `json:"error"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

type ChartMeta struct {
	Symbol    string `json:"symbol"`
	Currency  string `json:"currency"`
	GMTOffset int64  `json:"gmtoffset"`
}

type Indicators struct {
	Quote []Quote `json:"quote"`
}

// Quote holds parallel bar arrays; Yahoo reports missing bars as null.
type Quote struct {
	Low    []*float64 `json:"low"`
	High   []*float64 `json:"high"`
	Open   []*float64 `json:"open"`
	Volume []*float64 `json:"volume"`
	Close  []*float64 `json:"close"`
}

// Yahoo is the Yahoo Finance chart API client
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	delay      time.Duration
}

// NewYahoo creates a Yahoo client. An empty baseURL selects the public endpoint.
func NewYahoo(baseURL string) *Yahoo {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: 3,
		delay:    2 * time.Second,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

func yahooInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1m", "5m", "15m", "30m", "1d":
		return timeframe, nil
	case "1h":
		return "60m", nil
	case "1w":
		return "1wk", nil
	default:
		return "", fmt.Errorf("%w: yahoo does not serve %s", ErrUnsupportedTimeframe, timeframe)
	}
}

func (y *Yahoo) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	interval, err := yahooInterval(timeframe)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("period1", fmt.Sprintf("%d", start.Unix()))
	params.Add("period2", fmt.Sprintf("%d", end.Unix()))
	params.Add("interval", interval)
	params.Add("events", "history")
	params.Add("includePrePost", "false")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(strings.ToUpper(symbol)), params.Encode())

	var result YahooChartResponse
	err = retry(ctx, y.Name(), y.attempts, y.delay, func() error {
		return y.get(ctx, reqURL, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}

	candles, err := yahooCandles(result, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	return finish(candles, start, end)
}

func (y *Yahoo) get(ctx context.Context, reqURL string, out *YahooChartResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return permanent(ErrSymbolNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("Yahoo API error (status code %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return permanent(fmt.Errorf("Yahoo API error (status code %d): %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return permanent(fmt.Errorf("error decoding Yahoo response: %w", err))
	}
	return nil
}

func yahooCandles(resp YahooChartResponse, symbol, timeframe string) ([]candle.Candle, error) {
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, ErrSymbolNotFound
		}
		return nil, fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	daily := !tfutils.IsIntraday(timeframe)
	offset := time.Duration(r.Meta.GMTOffset) * time.Second

	candles := make([]candle.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice == 0 {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		if daily {
			// bars are stamped at the session open; key them by exchange-local date
			t = t.Add(offset).Truncate(24 * time.Hour)
		}
		candles = append(candles, candle.Candle{
			Timestamp: t,
			Open:      at(q.Open, i),
			High:      at(q.High, i),
			Low:       at(q.Low, i),
			Close:     closePrice,
			Volume:    at(q.Volume, i),
			Symbol:    strings.ToUpper(symbol),
			Timeframe: timeframe,
			Source:    "yahoo",
		})
	}
	return candles, nil
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}
