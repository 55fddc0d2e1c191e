package market

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

const atrPeriod = 14

func splitSeries(candles []Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return
}

// ATR returns the latest 14-period average true range, or 0 when the
// series is too short.
func ATR(candles []Candle) float64 {
	if len(candles) <= atrPeriod {
		return 0
	}
	highs, lows, closes := splitSeries(candles)
	series := talib.Atr(highs, lows, closes, atrPeriod)
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] > 0 {
			return series[i]
		}
	}
	return 0
}

// RealizedVol returns the standard deviation of close-to-close log returns
// over the whole series, as a fraction of price per bar.
func RealizedVol(candles []Candle) float64 {
	if len(candles) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

// StructureLevels extracts fractal pivot highs and lows as resistance and
// support candidates, most recent first.
func StructureLevels(candles []Candle, span int) (supports, resistances []float64) {
	if span <= 0 {
		span = 2
	}
	if len(candles) < 2*span+1 {
		return nil, nil
	}
	highs, lows, _ := splitSeries(candles)
	for i := len(candles) - span - 1; i >= span; i-- {
		if isFractalHigh(highs, i, span) {
			resistances = append(resistances, highs[i])
		}
		if isFractalLow(lows, i, span) {
			supports = append(supports, lows[i])
		}
	}
	return supports, resistances
}

func isFractalHigh(highs []float64, idx, span int) bool {
	v := highs[idx]
	for i := 1; i <= span; i++ {
		if v <= highs[idx-i] || v <= highs[idx+i] {
			return false
		}
	}
	return true
}

func isFractalLow(lows []float64, idx, span int) bool {
	v := lows[idx]
	for i := 1; i <= span; i++ {
		if v >= lows[idx-i] || v >= lows[idx+i] {
			return false
		}
	}
	return true
}
