package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
	"github.com/amirphl/rsicalc/internal/tfutils"
	"github.com/shopspring/decimal"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co/query"
	// Alpha Vantage outputsize options
	outputSizeCompact = "compact" // Returns the latest 100 data points
	outputSizeFull    = "full"    // Returns up to 20+ years of historical data
	// Threshold for when to use full output size
	compactOutputSizeLimit = 100
)

var errRateLimited = errors.New("alpha vantage rate limit reached")

// AlphaVantageResponse is decoded loosely because the series key depends on the function.
type AlphaVantageResponse struct {
	MetaData     map[string]string          `json:"Meta Data"`
	ErrorMessage string                     `json:"Error Message"`
	Note         string                     `json:"Note"`
	Information  string                     `json:"Information"`
	Series       map[string]AlphaVantageBar `json:"-"`
}

// AlphaVantageBar is one entry of a time series
type AlphaVantageBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func (r *AlphaVantageResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	type plain AlphaVantageResponse
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = AlphaVantageResponse(p)
	for k, v := range raw {
		if strings.Contains(k, "Time Series") {
			if err := json.Unmarshal(v, &r.Series); err != nil {
				return fmt.Errorf("decoding %q: %w", k, err)
			}
			break
		}
	}
	return nil
}

// AlphaVantage is the AlphaVantage API client
type AlphaVantage struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	location   *time.Location
	attempts   int
	delay      time.Duration
}

// NewAlphaVantage creates a new AlphaVantage API client
func NewAlphaVantage(apiKey, baseURL string) *AlphaVantage {
	if baseURL == "" {
		baseURL = alphaVantageBaseURL
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		location: loc,
		attempts: 3,
		delay:    15 * time.Second,
	}
}

func (c *AlphaVantage) Name() string { return "alphavantage" }

// alphaVantageFunction returns the API function and intraday interval for a timeframe.
func alphaVantageFunction(timeframe string) (function, interval string, err error) {
	switch timeframe {
	case "1d":
		return "TIME_SERIES_DAILY", "", nil
	case "1w":
		return "TIME_SERIES_WEEKLY", "", nil
	case "1m", "5m", "15m", "30m":
		return "TIME_SERIES_INTRADAY", strings.TrimSuffix(timeframe, "m") + "min", nil
	case "1h":
		return "TIME_SERIES_INTRADAY", "60min", nil
	default:
		return "", "", fmt.Errorf("%w: alphavantage does not serve %s", ErrUnsupportedTimeframe, timeframe)
	}
}

func (c *AlphaVantage) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	if c.apiKey == "" {
		return nil, errors.New("alphavantage: API key is not set (ALPHAVANTAGE_API_KEY)")
	}
	function, interval, err := alphaVantageFunction(timeframe)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("apikey", c.apiKey)
	params.Add("function", function)
	params.Add("symbol", strings.ToUpper(symbol))
	if interval != "" {
		params.Add("interval", interval)
	}

	// Determine the appropriate output size based on the requested number of bars
	bars := int(end.Sub(start) / tfutils.GetTimeframeDuration(timeframe))
	if bars > compactOutputSizeLimit {
		params.Add("outputsize", outputSizeFull)
	} else {
		params.Add("outputsize", outputSizeCompact)
	}

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var result AlphaVantageResponse
	err = retry(ctx, c.Name(), c.attempts, c.delay, func() error {
		return c.get(ctx, reqURL, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}

	candles, err := c.toCandles(result, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}
	return finish(candles, start, end)
}

func (c *AlphaVantage) get(ctx context.Context, reqURL string, out *AlphaVantageResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to Alpha Vantage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("Alpha Vantage API error (status code %d): %s", resp.StatusCode, string(bodyBytes))
		if resp.StatusCode >= 500 {
			return err
		}
		return permanent(err)
	}

	*out = AlphaVantageResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return permanent(fmt.Errorf("error decoding Alpha Vantage response: %w", err))
	}

	switch {
	case out.ErrorMessage != "":
		return permanent(fmt.Errorf("%w: %s", ErrSymbolNotFound, out.ErrorMessage))
	case out.Note != "" || (out.Information != "" && len(out.Series) == 0):
		return errRateLimited
	}
	return nil
}

func (c *AlphaVantage) toCandles(resp AlphaVantageResponse, symbol, timeframe string) ([]candle.Candle, error) {
	if len(resp.Series) == 0 {
		return nil, ErrNoData
	}

	candles := make([]candle.Candle, 0, len(resp.Series))
	for stamp, bar := range resp.Series {
		ts, err := c.parseStamp(stamp)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", stamp, err)
		}
		cd := candle.Candle{
			Timestamp: ts,
			Symbol:    strings.ToUpper(symbol),
			Timeframe: timeframe,
			Source:    c.Name(),
		}
		fields := []struct {
			raw string
			dst *float64
		}{
			{bar.Open, &cd.Open},
			{bar.High, &cd.High},
			{bar.Low, &cd.Low},
			{bar.Close, &cd.Close},
			{bar.Volume, &cd.Volume},
		}
		for _, f := range fields {
			if f.raw == "" {
				continue
			}
			d, err := decimal.NewFromString(f.raw)
			if err != nil {
				return nil, fmt.Errorf("bad price %q at %s: %w", f.raw, stamp, err)
			}
			*f.dst = d.InexactFloat64()
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// parseStamp parses "2006-01-02" as a UTC date and intraday stamps in US/Eastern.
func (c *AlphaVantage) parseStamp(s string) (time.Time, error) {
	if len(s) == len("2006-01-02") {
		return time.Parse("2006-01-02", s)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, c.location)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
