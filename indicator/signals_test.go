package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateOversoldBuys(t *testing.T) {
	cfg := DefaultConfig()
	set := Set{
		RSI: Value{Value: 20, Valid: true},
	}
	sig := Evaluate(nil, set, cfg)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-12)
	assert.Contains(t, sig.Reasons, "RSI oversold")
}

func TestEvaluateOverboughtSells(t *testing.T) {
	cfg := DefaultConfig()
	set := Set{
		RSI: Value{Value: 85, Valid: true},
	}
	sig := Evaluate(nil, set, cfg)
	assert.Equal(t, ActionSell, sig.Action)
	assert.Contains(t, sig.Reasons, "RSI overbought")
}

func TestEvaluateMATrend(t *testing.T) {
	cfg := DefaultConfig()
	set := Set{
		SMAShort: Value{Value: 110, Valid: true},
		SMALong:  Value{Value: 100, Valid: true},
	}
	sig := Evaluate(nil, set, cfg)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 0.6, sig.Confidence, 1e-12)
}

func TestEvaluateBollingerTouch(t *testing.T) {
	cfg := DefaultConfig()
	set := Set{
		BollUpper: Value{Value: 105, Valid: true},
		BollLower: Value{Value: 95, Valid: true},
	}

	sig := Evaluate([]float64{110}, set, cfg)
	assert.Equal(t, ActionSell, sig.Action)
	assert.InDelta(t, 0.5, sig.Confidence, 1e-12)

	sig = Evaluate([]float64{90}, set, cfg)
	assert.Equal(t, ActionBuy, sig.Action)
}

func TestEvaluateNoVotesHolds(t *testing.T) {
	sig := Evaluate(nil, Set{}, DefaultConfig())
	assert.Equal(t, ActionHold, sig.Action)
	assert.InDelta(t, 0.5, sig.Confidence, 1e-12)
}

func TestEvaluateTieHolds(t *testing.T) {
	cfg := DefaultConfig()
	// RSI says buy, MA trend says sell: one vote each.
	set := Set{
		RSI:      Value{Value: 20, Valid: true},
		SMAShort: Value{Value: 90, Valid: true},
		SMALong:  Value{Value: 100, Valid: true},
	}
	sig := Evaluate(nil, set, cfg)
	assert.Equal(t, ActionHold, sig.Action)
	assert.Contains(t, sig.Reasons, "conflicting signals")
}

func TestEvaluateMajorityWinsWithMeanConfidence(t *testing.T) {
	cfg := DefaultConfig()
	// RSI buy (0.8) + MA trend buy (0.6) vs Bollinger sell (0.5).
	set := Set{
		RSI:       Value{Value: 20, Valid: true},
		SMAShort:  Value{Value: 110, Valid: true},
		SMALong:   Value{Value: 100, Valid: true},
		BollUpper: Value{Value: 105, Valid: true},
		BollLower: Value{Value: 95, Valid: true},
	}
	sig := Evaluate([]float64{120}, set, cfg)
	require.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 0.7, sig.Confidence, 1e-12)
	assert.Len(t, sig.Reasons, 2)
}

func TestEvaluateMACDCross(t *testing.T) {
	cfg := DefaultConfig()
	// A long decline followed by a sharp rally drives the MACD line up
	// through its signal line on the final points.
	prices := make([]float64, 0, 60)
	for i := 0; i < 50; i++ {
		prices = append(prices, 200-float64(i))
	}
	for i := 0; i < 10; i++ {
		prices = append(prices, 151+float64(i)*8)
	}

	res, err := MACD(prices, cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod)
	require.NoError(t, err)
	last := len(prices) - 1
	require.Greater(t, res.Line[last], res.Signal[last], "rally should lift MACD above signal")

	// Walk back to find the cross tick and evaluate exactly there.
	crossAt := -1
	for i := 1; i <= last; i++ {
		if res.Line[i-1]-res.Signal[i-1] <= 0 && res.Line[i]-res.Signal[i] > 0 {
			crossAt = i
		}
	}
	require.Positive(t, crossAt)

	// An empty Set keeps the other indicators out of the vote, isolating
	// the cross detection. EMA is causal, so the cross found on the full
	// series holds when evaluating the prefix ending at the cross tick.
	sub := prices[:crossAt+1]
	sig := Evaluate(sub, Set{}, cfg)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 0.7, sig.Confidence, 1e-12)
	assert.Contains(t, sig.Reasons, "MACD golden cross")
}

func TestDescribe(t *testing.T) {
	s := Signal{Action: ActionBuy, Confidence: 0.8, Reasons: []string{"RSI oversold"}}
	assert.Equal(t, "bitcoin: BUY (RSI oversold)", Describe("bitcoin", s))
}
