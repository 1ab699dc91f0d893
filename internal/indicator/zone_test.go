package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		rsi  float64
		want Zone
	}{
		{0, Oversold},
		{30, Oversold},
		{30.01, Neutral},
		{50, Neutral},
		{69.99, Neutral},
		{70, Overbought},
		{100, Overbought},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.rsi), "rsi=%.2f", tt.rsi)
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Oversold: 20, Overbought: 80}.Validate())
	assert.Error(t, Thresholds{Oversold: 70, Overbought: 30}.Validate())
	assert.Error(t, Thresholds{Oversold: 50, Overbought: 50}.Validate())
	assert.Error(t, Thresholds{Oversold: -1, Overbought: 70}.Validate())
	assert.Error(t, Thresholds{Oversold: 30, Overbought: 101}.Validate())
}

func TestCrossing(t *testing.T) {
	th := DefaultThresholds()

	tr, ok := Crossing(65, 72, th)
	assert.True(t, ok)
	assert.Equal(t, Transition{From: Neutral, To: Overbought}, tr)
	assert.Equal(t, "entered overbought", tr.Describe())

	tr, ok = Crossing(25, 35, th)
	assert.True(t, ok)
	assert.Equal(t, "left oversold", tr.Describe())

	tr, ok = Crossing(75, 20, th)
	assert.True(t, ok)
	assert.Equal(t, "entered oversold", tr.Describe())

	_, ok = Crossing(50, 60, th)
	assert.False(t, ok)
}
