package market

import (
	"time"

	talib "github.com/markcheno/go-talib"
)

// Regime classifies the prevailing market state for a pair.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
	RegimeVolatile Regime = "volatile"
	RegimeUnknown  Regime = "unknown"
)

// DepthSnapshot summarizes order-book liquidity near the touch. Supplied by
// an external data collaborator.
type DepthSnapshot struct {
	BidDepthUSD float64 `json:"bid_depth_usd"`
	AskDepthUSD float64 `json:"ask_depth_usd"`
	SpreadPct   float64 `json:"spread_pct"`
}

// Context carries the per-cycle market state the fusion core derives its
// adjustments from. All fields are read-only during a cycle.
type Context struct {
	Symbol      string
	Timeframe   string
	LastPrice   float64
	Candles     []Candle
	Regime      Regime
	ATR         float64
	RealizedVol float64
	Depth       *DepthSnapshot
	Supports    []float64
	Resistances []float64
	UpdatedAt   time.Time
}

const (
	emaFastPeriod  = 12
	emaSlowPeriod  = 26
	trendThreshold = 0.01
	volThreshold   = 0.025
)

// Derive fills the computed fields (regime, ATR, realized vol, structure
// levels) from the candle series. Price and depth stay as supplied.
func (c Context) Derive() Context {
	c.ATR = ATR(c.Candles)
	c.RealizedVol = RealizedVol(c.Candles)
	c.Supports, c.Resistances = StructureLevels(c.Candles, 2)
	c.Regime = classifyRegime(c.Candles, c.RealizedVol)
	if c.LastPrice <= 0 && len(c.Candles) > 0 {
		c.LastPrice = c.Candles[len(c.Candles)-1].Close
	}
	return c
}

// classifyRegime: volatile when realized vol runs hot, trending when the
// fast/slow EMA gap is wide relative to price, ranging otherwise.
func classifyRegime(candles []Candle, realizedVol float64) Regime {
	if len(candles) < emaSlowPeriod+1 {
		return RegimeUnknown
	}
	if realizedVol >= volThreshold {
		return RegimeVolatile
	}
	_, _, closes := splitSeries(candles)
	fast := talib.Ema(closes, emaFastPeriod)
	slow := talib.Ema(closes, emaSlowPeriod)
	last := len(closes) - 1
	price := closes[last]
	if price <= 0 {
		return RegimeUnknown
	}
	gap := fast[last] - slow[last]
	if gap < 0 {
		gap = -gap
	}
	if gap/price >= trendThreshold*realizedVolScale(realizedVol) {
		return RegimeTrending
	}
	return RegimeRanging
}

// realizedVolScale keeps the trend threshold meaningful across quiet and
// busy tapes: the noisier the series, the wider the gap must be.
func realizedVolScale(realizedVol float64) float64 {
	if realizedVol <= 0.005 {
		return 0.5
	}
	if realizedVol >= 0.02 {
		return 2
	}
	return realizedVol / 0.01
}
