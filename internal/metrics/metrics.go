// Package metrics exposes Prometheus metrics for watch mode.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amirphl/rsicalc/internal/indicator"
	"github.com/amirphl/rsicalc/internal/quote"
	"github.com/amirphl/rsicalc/internal/utils"
)

// Metrics holds the Prometheus collectors of one rsicalc process.
type Metrics struct {
	registry *prometheus.Registry

	RSI              *prometheus.GaugeVec   // labels: symbol, timeframe
	FetchTotal       *prometheus.CounterVec // labels: source, result
	FetchDuration    *prometheus.HistogramVec
	ZoneTransitions  *prometheus.CounterVec // labels: symbol, zone
	LastUpdateSecond *prometheus.GaugeVec   // labels: symbol, timeframe

	mu      sync.RWMutex
	updated map[string]time.Time
	started time.Time
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updated:  make(map[string]time.Time),
		started:  time.Now(),

		RSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsicalc_rsi",
			Help: "Latest RSI value per symbol",
		}, []string{"symbol", "timeframe"}),
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsicalc_fetch_total",
			Help: "Quote source requests by result (ok, no_data, error)",
		}, []string{"source", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rsicalc_fetch_duration_seconds",
			Help:    "Quote source request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		ZoneTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsicalc_zone_transitions_total",
			Help: "RSI zone changes by the zone entered",
		}, []string{"symbol", "zone"}),
		LastUpdateSecond: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsicalc_last_update_timestamp_seconds",
			Help: "Unix time of the last successful RSI update",
		}, []string{"symbol", "timeframe"}),
	}

	m.registry.MustRegister(
		m.RSI,
		m.FetchTotal,
		m.FetchDuration,
		m.ZoneTransitions,
		m.LastUpdateSecond,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one quote source request.
func (m *Metrics) ObserveFetch(source string, err error, took time.Duration) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, quote.ErrNoData):
		result = "no_data"
	default:
		result = "error"
	}
	m.FetchTotal.WithLabelValues(source, result).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

// SetRSI records the latest RSI of a symbol.
func (m *Metrics) SetRSI(symbol, timeframe string, value float64, at time.Time) {
	m.RSI.WithLabelValues(symbol, timeframe).Set(value)
	m.LastUpdateSecond.WithLabelValues(symbol, timeframe).Set(float64(at.Unix()))

	m.mu.Lock()
	m.updated[symbol+"/"+timeframe] = at
	m.mu.Unlock()
}

// ZoneChanged counts a transition into zone.
func (m *Metrics) ZoneChanged(symbol string, zone indicator.Zone) {
	m.ZoneTransitions.WithLabelValues(symbol, string(zone)).Inc()
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", m.serveHealth)
	return mux
}

func (m *Metrics) serveHealth(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	updated := make(map[string]string, len(m.updated))
	for k, v := range m.updated {
		updated[k] = v.UTC().Format(time.RFC3339)
	}
	m.mu.RUnlock()

	status := struct {
		Status  string            `json:"status"`
		Uptime  string            `json:"uptime"`
		Updated map[string]string `json:"updated"`
	}{
		Status:  "healthy",
		Uptime:  time.Since(m.started).Round(time.Second).String(),
		Updated: updated,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// Serve runs the metrics HTTP server until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.GetLogger().Printf("Metrics | Server listening on %s", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
