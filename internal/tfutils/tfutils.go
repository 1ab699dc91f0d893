package tfutils

import (
	"errors"
	"time"
)

const week = 7 * 24 * time.Hour

// ParseTimeframe parses timeframe string (e.g., "5m", "1h", "1d") to time.Duration
func ParseTimeframe(timeframe string) (time.Duration, error) {
	d := GetTimeframeDuration(timeframe)
	if d == 0 {
		return 0, errors.New("unsupported timeframe")
	}
	return d, nil
}

// GetTimeframeDuration returns the duration for a given timeframe
func GetTimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "1w":
		return week
	default:
		return 0
	}
}

// GetSupportedTimeframes returns all supported timeframes
func GetSupportedTimeframes() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w"}
}

// IsValidTimeframe checks if a timeframe is supported
func IsValidTimeframe(timeframe string) bool {
	return GetTimeframeDuration(timeframe) > 0
}

// IsIntraday reports whether bars of this timeframe are shorter than a day.
func IsIntraday(timeframe string) bool {
	d := GetTimeframeDuration(timeframe)
	return d > 0 && d < 24*time.Hour
}

// LookbackFor returns the calendar span needed to collect at least bars bars.
// Markets close on weekends and holidays, so the span is stretched by 7/5
// and padded with an extra week.
func LookbackFor(timeframe string, bars int) time.Duration {
	d := GetTimeframeDuration(timeframe)
	if d == 0 || bars <= 0 {
		return 0
	}
	span := d * time.Duration(bars)
	return span*7/5 + week
}
