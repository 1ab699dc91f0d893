// Package candle
package candle

import (
	"errors"
	"sort"
	"time"

	"github.com/amirphl/rsicalc/internal/tfutils"
)

// ErrEmptySeries is returned when no usable candle is left after normalization.
var ErrEmptySeries = errors.New("candle series is empty")

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// IsComplete checks if the candle period has ended at now
func (c *Candle) IsComplete(now time.Time) bool {
	candleEnd := c.Timestamp.Add(tfutils.GetTimeframeDuration(c.Timeframe))
	return !now.Before(candleEnd)
}

// Validate checks if a candle has valid data.
// Close-only series (open/high/low left at zero) are accepted.
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Close <= 0 {
		return errors.New("candle close price must be positive")
	}
	if c.Open < 0 || c.High < 0 || c.Low < 0 {
		return errors.New("candle prices cannot be negative")
	}
	if c.High > 0 && c.Low > 0 {
		if c.High < c.Low {
			return errors.New("candle high cannot be less than low")
		}
		if c.Close < c.Low || c.Close > c.High {
			return errors.New("candle close price must be between high and low")
		}
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	if c.Timeframe == "" {
		return errors.New("candle timeframe cannot be empty")
	}
	return nil
}

// Closes extracts closing prices in order.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Normalize sorts candles by timestamp ascending, drops invalid ones and
// keeps only the last candle seen for a duplicated timestamp.
func Normalize(candles []Candle) ([]Candle, error) {
	byTime := make(map[int64]Candle, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			continue
		}
		c.Timestamp = c.Timestamp.UTC()
		byTime[c.Timestamp.UnixNano()] = c
	}
	if len(byTime) == 0 {
		return nil, ErrEmptySeries
	}

	out := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Tail returns the last n candles, or all of them if there are fewer.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 {
		return nil
	}
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// Between returns the candles with start <= timestamp < end. Input must be sorted.
func Between(candles []Candle, start, end time.Time) []Candle {
	lo := sort.Search(len(candles), func(i int) bool {
		return !candles[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(candles), func(i int) bool {
		return !candles[i].Timestamp.Before(end)
	})
	if lo >= hi {
		return nil
	}
	return candles[lo:hi]
}
