// Package watch polls RSI values and reports overbought/oversold transitions.
package watch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/rsicalc/internal/calculator"
	"github.com/amirphl/rsicalc/internal/indicator"
	"github.com/amirphl/rsicalc/internal/metrics"
	"github.com/amirphl/rsicalc/internal/notifier"
	"github.com/amirphl/rsicalc/internal/utils"
)

// RSICalculator is the part of calculator.Calculator the watcher needs.
type RSICalculator interface {
	Calculate(ctx context.Context, req calculator.Request) (calculator.Result, error)
}

type Options struct {
	Interval time.Duration
	// NotifyInitial sends a notification for the first observed zone.
	NotifyInitial bool
	// OnResult, if set, is called after every successful calculation.
	OnResult func(calculator.Result)
}

type Watcher struct {
	calc     RSICalculator
	notifier notifier.Notifier
	metrics  *metrics.Metrics
	opts     Options
	logger   *log.Logger

	mu    sync.Mutex
	zones map[string]indicator.Zone
}

// New creates a Watcher. m may be nil.
func New(calc RSICalculator, n notifier.Notifier, m *metrics.Metrics, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	return &Watcher{
		calc:     calc,
		notifier: n,
		metrics:  m,
		opts:     opts,
		logger:   utils.GetLogger(),
		zones:    make(map[string]indicator.Zone),
	}
}

// Run polls every request until ctx is canceled.
func (w *Watcher) Run(ctx context.Context, reqs []calculator.Request) {
	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(r calculator.Request) {
			defer wg.Done()
			w.loop(ctx, r)
		}(req)
	}
	wg.Wait()
}

// Zone returns the last observed zone of a symbol.
func (w *Watcher) Zone(symbol, timeframe string) (indicator.Zone, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	z, ok := w.zones[symbol+"/"+timeframe]
	return z, ok
}

func (w *Watcher) loop(ctx context.Context, req calculator.Request) {
	// Polls always go to the quote source.
	req.Refresh = true

	w.logger.Printf("Watcher | Watching %s %s every %s", req.Symbol, req.Timeframe, w.opts.Interval)
	w.poll(ctx, req)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("Watcher | Stopped watching %s", req.Symbol)
			return
		case <-ticker.C:
			w.poll(ctx, req)
		}
	}
}

func (w *Watcher) poll(ctx context.Context, req calculator.Request) {
	res, err := w.calc.Calculate(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Printf("Watcher | Failed to calculate RSI: %v", err)
		}
		return
	}

	if w.metrics != nil {
		w.metrics.SetRSI(res.Symbol, res.Timeframe, res.Latest.RSI, time.Now())
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}

	key := res.Symbol + "/" + res.Timeframe
	w.mu.Lock()
	prev, seen := w.zones[key]
	w.zones[key] = res.Zone
	w.mu.Unlock()

	switch {
	case !seen:
		if w.opts.NotifyInitial {
			w.send(Message(res, fmt.Sprintf("is %s", res.Zone)))
		}
	case prev != res.Zone:
		if w.metrics != nil {
			w.metrics.ZoneChanged(res.Symbol, res.Zone)
		}
		tr := indicator.Transition{From: prev, To: res.Zone}
		w.send(Message(res, tr.Describe()))
	}
}

func (w *Watcher) send(msg string) {
	w.logger.Printf("Watcher | %s", msg)
	if w.notifier == nil {
		return
	}
	if err := w.notifier.SendWithRetry(msg); err != nil {
		w.logger.Printf("Watcher | Failed to send notification: %v", err)
	}
}

// Message formats a notification such as "AAPL RSI(14) 72.31 entered overbought".
func Message(res calculator.Result, event string) string {
	return fmt.Sprintf("%s RSI(%d) %.2f %s", res.Symbol, res.Period, res.Latest.RSI, event)
}
