package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingSeries(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	return prices
}

func TestRSI(t *testing.T) {
	// Monotonically rising: no losses, RSI pegs at 100.
	rsi, err := RSI(risingSeries(20), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)

	// Monotonically falling: no gains, RSI at 0.
	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 200 - float64(i)
	}
	rsi, err = RSI(falling, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)

	// Alternating equal gains and losses average out near 50.
	alternating := make([]float64, 21)
	for i := range alternating {
		alternating[i] = 100 + float64(i%2)
	}
	rsi, err = RSI(alternating, 14)
	require.NoError(t, err)
	assert.Greater(t, rsi, 40.0)
	assert.Less(t, rsi, 60.0)
}

func TestRSIInsufficientData(t *testing.T) {
	// RSI needs period+1 points for period deltas.
	_, err := RSI(risingSeries(14), 14)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = RSI(risingSeries(15), 14)
	assert.NoError(t, err)

	_, err = RSI(nil, 14)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = RSI(risingSeries(20), 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSMA(t *testing.T) {
	sma, err := SMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sma, 1e-12)

	// Only the trailing window counts.
	sma, err = SMA([]float64{100, 100, 1, 2, 3}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sma, 1e-12)

	_, err = SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEMASeries(t *testing.T) {
	prices := []float64{10, 20, 30}
	ema := EMASeries(prices, 9)
	require.Len(t, ema, 3)
	assert.Equal(t, 10.0, ema[0], "seeded from the first value")
	// multiplier = 2/10 = 0.2
	assert.InDelta(t, 12.0, ema[1], 1e-12)
	assert.InDelta(t, 15.6, ema[2], 1e-12)

	assert.Nil(t, EMASeries(nil, 9))
	assert.Nil(t, EMASeries(prices, 0))
}

func TestMACD(t *testing.T) {
	prices := risingSeries(40)
	res, err := MACD(prices, 12, 26, 9)
	require.NoError(t, err)
	require.Len(t, res.Line, 40)
	require.Len(t, res.Signal, 40)
	require.Len(t, res.Histogram, 40)

	// In a steady uptrend the fast EMA sits above the slow EMA.
	last := len(prices) - 1
	assert.Greater(t, res.Line[last], 0.0)
	assert.InDelta(t, res.Line[last]-res.Signal[last], res.Histogram[last], 1e-12)

	_, err = MACD(risingSeries(25), 12, 26, 9)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestBollingerBands(t *testing.T) {
	// Constant series: zero deviation, all bands collapse to the mean.
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 50
	}
	bands, err := BollingerBands(flat, 20, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, bands.Upper, 1e-12)
	assert.InDelta(t, 50.0, bands.Middle, 1e-12)
	assert.InDelta(t, 50.0, bands.Lower, 1e-12)

	// Known small case: mean 3, population std dev sqrt(2).
	bands, err = BollingerBands([]float64{1, 2, 3, 4, 5}, 5, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, bands.Middle, 1e-12)
	assert.InDelta(t, 3.0+2.0*1.4142135623730951, bands.Upper, 1e-9)
	assert.InDelta(t, 3.0-2.0*1.4142135623730951, bands.Lower, 1e-9)

	_, err = BollingerBands(flat[:10], 20, 2.0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeMarksShortSeriesInvalid(t *testing.T) {
	cfg := DefaultConfig()

	set := Compute(risingSeries(3), cfg)
	assert.False(t, set.RSI.Valid)
	assert.False(t, set.MACD.Valid)
	assert.False(t, set.SMALong.Valid)
	assert.False(t, set.BollMiddle.Valid)
	// SMA short needs only 5 points; 3 is still too few.
	assert.False(t, set.SMAShort.Valid)

	set = Compute(risingSeries(40), cfg)
	assert.True(t, set.RSI.Valid)
	assert.True(t, set.MACD.Valid)
	assert.True(t, set.MACDSignal.Valid)
	assert.True(t, set.MACDHist.Valid)
	assert.True(t, set.SMAShort.Valid)
	assert.True(t, set.SMALong.Valid)
	assert.True(t, set.BollUpper.Valid)
}
