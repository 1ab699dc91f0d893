// Package indicator computes technical indicators over closing prices.
package indicator

import "errors"

var (
	// ErrInvalidPeriod is returned for a look-back period below 1.
	ErrInvalidPeriod = errors.New("indicator period must be at least 1")
	// ErrInsufficientData is returned when a series is too short for the period.
	ErrInsufficientData = errors.New("not enough prices for indicator period")
)

// Indicator is the interface for streaming technical indicators.
type Indicator interface {
	Name() string
	Update(price float64)
	Value() float64
	Ready() bool
	// Peek returns what Value would be after price, without mutating state.
	Peek(price float64) float64
}
