// Package indicator implements pure technical-indicator computation over a
// time-ordered price series. All functions are deterministic and side-effect
// free; series shorter than the required window yield an explicit
// insufficient-data result instead of a panic or a fabricated number.
package indicator

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when the price series is shorter than the
// window an indicator needs.
var ErrInsufficientData = errors.New("indicator: insufficient data for requested window")

// Value is a single computed indicator value. Valid is false when the series
// was too short to compute it.
type Value struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Set holds all computed indicator values for one asset.
type Set struct {
	RSI        Value `json:"rsi"`
	MACD       Value `json:"macd"`
	MACDSignal Value `json:"macd_signal"`
	MACDHist   Value `json:"macd_hist"`
	SMAShort   Value `json:"sma_short"`
	SMALong    Value `json:"sma_long"`
	BollUpper  Value `json:"boll_upper"`
	BollMiddle Value `json:"boll_middle"`
	BollLower  Value `json:"boll_lower"`
}

// Bands holds a single Bollinger Band reading.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// MACDResult holds the full MACD series for cross detection.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// RSI calculates the Relative Strength Index over the trailing window of the
// given period. The result is in [0,100].
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) < period+1 {
		return 0, ErrInsufficientData
	}
	gains, losses := 0.0, 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), nil
}

// EMASeries computes an exponential moving average series with the standard
// 2/(period+1) smoothing, seeded from the first value.
func EMASeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return nil
	}
	ema := make([]float64, len(prices))
	multiplier := 2.0 / float64(period+1)
	ema[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		ema[i] = (prices[i]-ema[i-1])*multiplier + ema[i-1]
	}
	return ema
}

// SMA calculates the simple moving average over the trailing window.
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) < period {
		return 0, ErrInsufficientData
	}
	segment := prices[len(prices)-period:]
	sum := 0.0
	for _, v := range segment {
		sum += v
	}
	return sum / float64(period), nil
}

// MACD computes the MACD line (fast EMA - slow EMA), its signal line, and the
// histogram, as full series so callers can detect crosses.
func MACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) (MACDResult, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return MACDResult{}, ErrInsufficientData
	}
	// The slow EMA needs at least slowPeriod points to mean anything.
	if len(prices) < slowPeriod {
		return MACDResult{}, ErrInsufficientData
	}

	fastEMA := EMASeries(prices, fastPeriod)
	slowEMA := EMASeries(prices, slowPeriod)

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signal := EMASeries(line, signalPeriod)

	hist := make([]float64, len(prices))
	for i := range prices {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}, nil
}

// BollingerBands computes the simple moving average plus/minus k standard
// deviations over the trailing window.
func BollingerBands(prices []float64, period int, k float64) (Bands, error) {
	if period <= 0 || len(prices) < period {
		return Bands{}, ErrInsufficientData
	}
	middle, err := SMA(prices, period)
	if err != nil {
		return Bands{}, err
	}
	segment := prices[len(prices)-period:]
	variance := 0.0
	for _, v := range segment {
		d := v - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	return Bands{
		Upper:  middle + k*std,
		Middle: middle,
		Lower:  middle - k*std,
	}, nil
}

// Config holds the windows used by Compute and Evaluate.
type Config struct {
	RSIPeriod        int
	RSIOverbought    float64
	RSIOversold      float64
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int
	BollingerPeriod  int
	BollingerStdDev  float64
	SMAShortPeriod   int
	SMALongPeriod    int
}

// DefaultConfig returns the standard indicator windows.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:        14,
		RSIOverbought:    70,
		RSIOversold:      30,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
		BollingerPeriod:  20,
		BollingerStdDev:  2.0,
		SMAShortPeriod:   5,
		SMALongPeriod:    20,
	}
}

// Compute aggregates all indicators for a price series. Indicators whose
// window exceeds the series length come back with Valid=false.
func Compute(prices []float64, cfg Config) Set {
	var set Set

	if rsi, err := RSI(prices, cfg.RSIPeriod); err == nil {
		set.RSI = Value{Value: rsi, Valid: true}
	}
	if macd, err := MACD(prices, cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod); err == nil {
		last := len(macd.Line) - 1
		set.MACD = Value{Value: macd.Line[last], Valid: true}
		set.MACDSignal = Value{Value: macd.Signal[last], Valid: true}
		set.MACDHist = Value{Value: macd.Histogram[last], Valid: true}
	}
	if sma, err := SMA(prices, cfg.SMAShortPeriod); err == nil {
		set.SMAShort = Value{Value: sma, Valid: true}
	}
	if sma, err := SMA(prices, cfg.SMALongPeriod); err == nil {
		set.SMALong = Value{Value: sma, Valid: true}
	}
	if bands, err := BollingerBands(prices, cfg.BollingerPeriod, cfg.BollingerStdDev); err == nil {
		set.BollUpper = Value{Value: bands.Upper, Valid: true}
		set.BollMiddle = Value{Value: bands.Middle, Valid: true}
		set.BollLower = Value{Value: bands.Lower, Valid: true}
	}
	return set
}
