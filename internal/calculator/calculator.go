// Package calculator loads price history for a symbol, caching it in the
// candle store, and computes its RSI series.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/cache"
	"github.com/amirphl/rsicalc/internal/candle"
	"github.com/amirphl/rsicalc/internal/db"
	"github.com/amirphl/rsicalc/internal/indicator"
	"github.com/amirphl/rsicalc/internal/quote"
	"github.com/amirphl/rsicalc/internal/tfutils"
	"github.com/amirphl/rsicalc/internal/utils"
)

const (
	// WarmupFactor multiplies the period to size the default history window.
	WarmupFactor = 5
	// MaxChunk bounds a single intraday request to the quote source.
	MaxChunk = 30 * 24 * time.Hour

	requestTimeout = 30 * time.Second
	// gapSlack absorbs weekends and holidays at the edges of a stored window.
	gapSlack = 4 * 24 * time.Hour
)

// Request describes one RSI computation. To is exclusive; a zero To means now.
// A zero From derives the window from Period and Timeframe.
type Request struct {
	Symbol     string
	Source     string
	Timeframe  string
	Period     int
	Thresholds indicator.Thresholds
	From       time.Time
	To         time.Time
	Refresh    bool
}

type Result struct {
	Symbol     string               `json:"symbol"`
	Source     string               `json:"source"`
	Timeframe  string               `json:"timeframe"`
	Period     int                  `json:"period"`
	Thresholds indicator.Thresholds `json:"thresholds"`
	Points     []indicator.Point    `json:"points,omitempty"`
	Latest     indicator.Point      `json:"latest"`
	Zone       indicator.Zone       `json:"zone"`
}

// FetchObserver is notified after every request to a quote source.
type FetchObserver interface {
	ObserveFetch(source string, err error, took time.Duration)
}

type Calculator struct {
	store    db.Storage
	sources  *quote.Registry
	cache    cache.Cache
	freshFor time.Duration
	observer FetchObserver
	logger   *log.Logger
	now      func() time.Time
}

// New creates a Calculator. The cache may be nil, in which case every
// request goes to the quote source.
func New(store db.Storage, sources *quote.Registry, c cache.Cache, freshFor time.Duration) *Calculator {
	return &Calculator{
		store:    store,
		sources:  sources,
		cache:    c,
		freshFor: freshFor,
		logger:   utils.GetLogger(),
		now:      time.Now,
	}
}

// SetObserver installs a hook for fetch metrics.
func (c *Calculator) SetObserver(o FetchObserver) {
	c.observer = o
}

// Calculate returns the RSI series for the request and the zone of its latest value.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Result, error) {
	req, err := c.prepare(req)
	if err != nil {
		return Result{}, err
	}

	candles, err := c.loadCandles(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", req.Symbol, err)
	}

	points, err := indicator.Series(candles, req.Period)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", req.Symbol, err)
	}

	latest := points[len(points)-1]
	return Result{
		Symbol:     req.Symbol,
		Source:     req.Source,
		Timeframe:  req.Timeframe,
		Period:     req.Period,
		Thresholds: req.Thresholds,
		Points:     points,
		Latest:     latest,
		Zone:       req.Thresholds.Classify(latest.RSI),
	}, nil
}

// CalculateAll runs every request in order. A failed request leaves its
// error in the returned slice and does not stop the others.
func (c *Calculator) CalculateAll(ctx context.Context, reqs []Request) ([]Result, []error) {
	var (
		results []Result
		errs    []error
	)
	for _, req := range reqs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := c.Calculate(ctx, req)
		if err != nil {
			c.logger.Printf("Calculator | %v", err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

func (c *Calculator) prepare(req Request) (Request, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return req, errors.New("empty symbol")
	}
	if req.Period <= 0 {
		return req, indicator.ErrInvalidPeriod
	}
	if !tfutils.IsValidTimeframe(req.Timeframe) {
		return req, fmt.Errorf("%w: %s", quote.ErrUnsupportedTimeframe, req.Timeframe)
	}
	if req.Thresholds == (indicator.Thresholds{}) {
		req.Thresholds = indicator.DefaultThresholds()
	}
	if err := req.Thresholds.Validate(); err != nil {
		return req, err
	}
	if req.To.IsZero() {
		req.To = c.now()
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-tfutils.LookbackFor(req.Timeframe, req.Period*WarmupFactor+1))
	}
	if !req.From.Before(req.To) {
		return req, fmt.Errorf("start %s is not before end %s", req.From.Format(time.RFC3339), req.To.Format(time.RFC3339))
	}
	return req, nil
}

// loadCandles reads from the store while the fetch cache marks the series
// fresh and otherwise downloads and stores the window.
func (c *Calculator) loadCandles(ctx context.Context, req Request) ([]candle.Candle, error) {
	key := cache.Key(req.Source, req.Symbol, req.Timeframe)

	if !req.Refresh && c.isFresh(ctx, key) {
		stored, err := c.store.GetCandles(ctx, req.Symbol, req.Timeframe, req.Source, req.From, req.To)
		if err != nil {
			return nil, fmt.Errorf("error loading candles from database: %w", err)
		}
		if len(stored) > req.Period && c.covers(stored, req) {
			c.logger.Printf("Calculator | Using %d stored candles for %s %s", len(stored), req.Symbol, req.Timeframe)
			return candle.Normalize(stored)
		}
		c.logger.Printf("Calculator | %d stored candles do not cover %s %s [%s-%s], fetching",
			len(stored), req.Symbol, req.Timeframe, req.From.Format(time.RFC3339), req.To.Format(time.RFC3339))
	}

	fetched, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	saveCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	err = c.store.SaveCandles(saveCtx, fetched)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("error saving candles to database: %w", err)
	}

	if c.cache != nil && c.freshFor > 0 {
		if err := c.cache.Set(ctx, key, c.now(), c.freshFor); err != nil {
			c.logger.Printf("Calculator | Failed to mark %s fresh: %v", key, err)
		}
	}
	return candle.Normalize(fetched)
}

// covers reports whether stored candles span the request window. The first
// bar must open within one step plus gapSlack of From and the last within
// the same distance of the window end, which is capped at now.
func (c *Calculator) covers(stored []candle.Candle, req Request) bool {
	if len(stored) == 0 {
		return false
	}
	end := req.To
	if now := c.now(); now.Before(end) {
		end = now
	}
	tolerance := tfutils.GetTimeframeDuration(req.Timeframe) + gapSlack
	first, last := stored[0].Timestamp, stored[len(stored)-1].Timestamp
	return first.Sub(req.From) <= tolerance && end.Sub(last) <= tolerance
}

func (c *Calculator) isFresh(ctx context.Context, key string) bool {
	if c.cache == nil || c.freshFor <= 0 {
		return false
	}
	_, err := c.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		c.logger.Printf("Calculator | Cache lookup for %s failed: %v", key, err)
	}
	return err == nil
}

// fetch downloads the request window, splitting intraday windows into
// MaxChunk sized requests.
func (c *Calculator) fetch(ctx context.Context, req Request) ([]candle.Candle, error) {
	src, err := c.sources.Get(req.Source)
	if err != nil {
		return nil, err
	}

	chunk := req.To.Sub(req.From)
	if tfutils.IsIntraday(req.Timeframe) && chunk > MaxChunk {
		chunk = MaxChunk
	}

	var all []candle.Candle
	for curr := req.From; curr.Before(req.To); {
		next := curr.Add(chunk)
		if next.After(req.To) {
			next = req.To
		}

		downloadCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		began := time.Now()
		got, err := src.FetchCandles(downloadCtx, req.Symbol, req.Timeframe, curr, next)
		cancel()
		if c.observer != nil {
			c.observer.ObserveFetch(src.Name(), err, time.Since(began))
		}

		switch {
		case errors.Is(err, quote.ErrNoData):
			c.logger.Printf("Calculator | No candles available for %s from %s to %s",
				req.Symbol, curr.Format(time.RFC3339), next.Format(time.RFC3339))
		case err != nil:
			return nil, fmt.Errorf("error fetching candles from %s to %s: %w",
				curr.Format(time.RFC3339), next.Format(time.RFC3339), err)
		default:
			c.logger.Printf("Calculator | Downloaded %d candles for %s [%s-%s]",
				len(got), req.Symbol, curr.Format(time.RFC3339), next.Format(time.RFC3339))
			all = append(all, got...)
		}
		curr = next
	}

	if len(all) == 0 {
		return nil, quote.ErrNoData
	}
	return all, nil
}
