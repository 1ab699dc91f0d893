package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/amirphl/rsicalc/internal/candle"
)

// CalculateRSI computes Wilder's RSI for every price. The first period entries
// are NaN; the first value sits at index period and is seeded with the simple
// average of the first period changes. It returns nil if period <= 0 or there
// are not more than period prices.
func CalculateRSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return nil
	}
	rsi := make([]float64, len(prices))
	r := NewRSI(period)
	for i, p := range prices {
		r.Update(p)
		if r.Ready() {
			rsi[i] = r.Value()
		} else {
			rsi[i] = math.NaN()
		}
	}
	return rsi
}

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per price.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI_%d", r.period) }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		r.prevClose = price
		return
	}

	gain, loss := split(price - r.prevClose)
	r.prevClose = price

	if r.count <= r.period+1 {
		// accumulate the seed averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiValue(r.avgGain, r.avgLoss)
		}
		return
	}

	r.avgGain = smooth(r.avgGain, gain, r.period)
	r.avgLoss = smooth(r.avgLoss, loss, r.period)
	r.current = rsiValue(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64   { return r.current }
func (r *RSI) Ready() bool      { return r.period > 0 && r.count > r.period }
func (r *RSI) AvgGain() float64 { return r.avgGain }
func (r *RSI) AvgLoss() float64 { return r.avgLoss }
func (r *RSI) Period() int      { return r.period }

// Peek computes what RSI would be with an additional price without mutating state.
func (r *RSI) Peek(price float64) float64 {
	if !r.Ready() {
		return r.current
	}
	gain, loss := split(price - r.prevClose)
	return rsiValue(smooth(r.avgGain, gain, r.period), smooth(r.avgLoss, loss, r.period))
}

// Snapshot is the serializable state of an RSI.
type Snapshot struct {
	Period    int     `json:"period"`
	Count     int     `json:"count"`
	PrevClose float64 `json:"prev_close"`
	AvgGain   float64 `json:"avg_gain"`
	AvgLoss   float64 `json:"avg_loss"`
	Current   float64 `json:"current"`
}

func (r *RSI) Snapshot() Snapshot {
	return Snapshot{
		Period:    r.period,
		Count:     r.count,
		PrevClose: r.prevClose,
		AvgGain:   r.avgGain,
		AvgLoss:   r.avgLoss,
		Current:   r.current,
	}
}

// Restore replaces the RSI state with snap.
func (r *RSI) Restore(snap Snapshot) error {
	if snap.Period <= 0 {
		return ErrInvalidPeriod
	}
	r.period = snap.Period
	r.count = snap.Count
	r.prevClose = snap.PrevClose
	r.avgGain = snap.AvgGain
	r.avgLoss = snap.AvgLoss
	r.current = snap.Current
	return nil
}

// Point is one RSI observation together with the smoothed averages behind it.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
	AvgGain   float64   `json:"avg_gain"`
	AvgLoss   float64   `json:"avg_loss"`
	RSI       float64   `json:"rsi"`
}

// Series computes an RSI point for every candle from index period onward.
// Candles must be sorted by timestamp ascending.
func Series(candles []candle.Candle, period int) ([]Point, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) <= period {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(candles), period+1)
	}

	r := NewRSI(period)
	points := make([]Point, 0, len(candles)-period)
	for _, c := range candles {
		r.Update(c.Close)
		if !r.Ready() {
			continue
		}
		points = append(points, Point{
			Timestamp: c.Timestamp,
			Close:     c.Close,
			AvgGain:   r.AvgGain(),
			AvgLoss:   r.AvgLoss(),
			RSI:       r.Value(),
		})
	}
	return points, nil
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

// smooth applies Wilder's smoothing: (prev*(period-1) + x) / period
func smooth(prev, x float64, period int) float64 {
	p := float64(period)
	return (prev*(p-1) + x) / p
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
