package fusion

import (
	"fusor/internal/market"
)

// fuseWeighted computes a weighted average where each source's weight is
// its performance-derived base weight scaled by regime and volatility
// adjustments, then normalized to sum to one.
func (e *Engine) fuseWeighted(in Input) (float64, float64, map[string]float64) {
	weights := make(map[string]float64, len(in.Signals))
	for _, sig := range in.Signals {
		base := in.Perf.BaseWeight(sig.Source)
		w := base * regimeAdjust(in.Market.Regime, sig.Value) * volAdjust(in.Market.RealizedVol, sig.Confidence)
		weights[sig.Source] = w * sig.Confidence
	}
	total := 0.0
	for _, sig := range in.Signals {
		total += weights[sig.Source]
	}
	value := 0.0
	confidence := 0.0
	if total > 0 {
		for _, sig := range in.Signals {
			share := weights[sig.Source] / total
			value += sig.Value * share
			confidence += sig.Confidence * share
		}
	}
	confidence *= agreement(in, weights)
	return value, confidence, weights
}

// regimeAdjust favors committed directional calls in trending markets and
// tempers them when the tape is ranging.
func regimeAdjust(regime market.Regime, value float64) float64 {
	mag := value
	if mag < 0 {
		mag = -mag
	}
	switch regime {
	case market.RegimeTrending:
		return 1 + 0.25*mag
	case market.RegimeRanging:
		return 1 - 0.2*mag
	default:
		return 1
	}
}

// volAdjust penalizes low-confidence signals harder the noisier the market.
func volAdjust(realizedVol, confidence float64) float64 {
	if realizedVol <= 0 {
		return 1
	}
	penalty := realizedVol * 20 * (1 - confidence)
	return 1 / (1 + penalty)
}
