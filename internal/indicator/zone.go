package indicator

import "fmt"

// Zone is the band an RSI value falls into.
type Zone string

const (
	Oversold   Zone = "oversold"
	Neutral    Zone = "neutral"
	Overbought Zone = "overbought"
)

// Thresholds bound the oversold and overbought zones.
type Thresholds struct {
	Oversold   float64 `yaml:"oversold" json:"oversold"`
	Overbought float64 `yaml:"overbought" json:"overbought"`
}

// DefaultThresholds are Wilder's 30/70 levels.
func DefaultThresholds() Thresholds {
	return Thresholds{Oversold: 30, Overbought: 70}
}

func (t Thresholds) Validate() error {
	if t.Oversold < 0 || t.Overbought > 100 || t.Oversold >= t.Overbought {
		return fmt.Errorf("invalid RSI thresholds: oversold=%.2f overbought=%.2f", t.Oversold, t.Overbought)
	}
	return nil
}

// Classify returns the zone for an RSI value. Values on a threshold belong to its zone.
func (t Thresholds) Classify(rsi float64) Zone {
	switch {
	case rsi <= t.Oversold:
		return Oversold
	case rsi >= t.Overbought:
		return Overbought
	default:
		return Neutral
	}
}

// Transition describes a move from one zone to another.
type Transition struct {
	From Zone
	To   Zone
}

// Crossing reports the zone transition between two consecutive RSI values.
// ok is false when both values sit in the same zone.
func Crossing(prev, cur float64, t Thresholds) (tr Transition, ok bool) {
	from, to := t.Classify(prev), t.Classify(cur)
	if from == to {
		return Transition{}, false
	}
	return Transition{From: from, To: to}, true
}

// Describe renders a transition as "entered overbought" or "left oversold".
func (tr Transition) Describe() string {
	if tr.To == Neutral {
		return "left " + string(tr.From)
	}
	return "entered " + string(tr.To)
}
