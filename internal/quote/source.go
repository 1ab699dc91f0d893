// Package quote retrieves historical price bars from market data providers.
package quote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
)

var (
	// ErrUnknownSource is returned by Registry.Get for an unregistered name.
	ErrUnknownSource = errors.New("unknown quote source")
	// ErrNoData is returned when a provider answers without any bar.
	ErrNoData = errors.New("no quote data returned")
	// ErrSymbolNotFound is returned when a provider does not know the symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUnsupportedTimeframe is returned for a timeframe a provider cannot serve.
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
)

// Source is the interface for all quote providers. Implementations return
// validated candles sorted by timestamp ascending with start <= ts < end.
type Source interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
}

// Registry maps source names to implementations.
type Registry struct {
	sources map[string]Source
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Source) {
	r.sources[s.Name()] = s
}

func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return s, nil
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// finish validates, sorts and range-filters provider output.
func finish(candles []candle.Candle, start, end time.Time) ([]candle.Candle, error) {
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	out, err := candle.Normalize(candles)
	if err != nil {
		return nil, ErrNoData
	}
	if !start.IsZero() || !end.IsZero() {
		if end.IsZero() {
			end = time.Now().Add(24 * time.Hour)
		}
		out = candle.Between(out, start, end)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
