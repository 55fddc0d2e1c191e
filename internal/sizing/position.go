// Package sizing turns a resolved, risk-adjusted signal into a concrete
// position size and its protective levels.
package sizing

import (
	"fusor/internal/config"
)

const (
	methodKelly     = "kelly"
	methodFixed     = "fixed_fraction"
	methodVol       = "volatility"
	fallbackStopPct = 0.02
)

// MethodWeightsFn supplies the current sizing method weights; wired to the
// weights registry for hot reload.
type MethodWeightsFn func() map[string]float64

// Input is one sizing request. All adjustment multipliers are in (0,1].
type Input struct {
	Confidence      float64
	EquityUSD       float64
	EntryPrice      float64
	StopDistancePct float64
	RealizedVol     float64
	WinRate         float64
	HasWinRate      bool
	RiskMultiplier  float64 // from the risk assessment band
	ResolutionMult  float64 // from the conflict resolver
}

// Result is the sized position. Deterministic for identical inputs.
type Result struct {
	SizeUnits     float64            `json:"size_units"`
	NotionalUSD   float64            `json:"notional_usd"`
	RiskAmountUSD float64            `json:"risk_amount_usd"`
	RiskPct       float64            `json:"risk_pct"`
	MethodWeights map[string]float64 `json:"method_weights"`
	Fractions     map[string]float64 `json:"fractions"`
}

// Sizer blends capped Kelly, fixed-fractional and volatility-adjusted
// sizing under configurable method weights, then applies the risk and
// resolution multipliers and the hard exposure cap.
type Sizer struct {
	cfg       config.SizingConfig
	weightsFn MethodWeightsFn
}

func NewSizer(cfg config.SizingConfig, weightsFn MethodWeightsFn) *Sizer {
	if cfg.KellyCap <= 0 || cfg.KellyCap > 1 {
		cfg.KellyCap = 0.25
	}
	if cfg.FixedFraction <= 0 {
		cfg.FixedFraction = 0.02
	}
	if cfg.TargetVol <= 0 {
		cfg.TargetVol = 0.02
	}
	if cfg.MaxExposurePct <= 0 || cfg.MaxExposurePct > 1 {
		cfg.MaxExposurePct = 0.1
	}
	return &Sizer{cfg: cfg, weightsFn: weightsFn}
}

// Size computes the blended position. The exposure cap binds before the
// risk and resolution multipliers so a high risk score always shrinks the
// final size proportionally.
func (s *Sizer) Size(in Input) Result {
	if in.EquityUSD <= 0 || in.EntryPrice <= 0 {
		return Result{MethodWeights: s.methodWeights(), Fractions: map[string]float64{}}
	}
	stopPct := in.StopDistancePct
	if stopPct <= 0 {
		stopPct = fallbackStopPct
	}

	fractions := map[string]float64{
		methodKelly: s.kellyFraction(in),
		methodFixed: s.fixedFraction(stopPct),
		methodVol:   s.volFraction(in),
	}
	weights := s.methodWeights()

	totalWeight := 0.0
	blended := 0.0
	for _, name := range []string{methodKelly, methodFixed, methodVol} {
		w := weights[name]
		if w <= 0 {
			continue
		}
		totalWeight += w
		blended += fractions[name] * w
	}
	if totalWeight > 0 {
		blended /= totalWeight
	}

	if blended > s.cfg.MaxExposurePct {
		blended = s.cfg.MaxExposurePct
	}
	blended *= clampMult(in.RiskMultiplier) * clampMult(in.ResolutionMult)

	notional := in.EquityUSD * blended
	riskAmount := notional * stopPct
	return Result{
		SizeUnits:     notional / in.EntryPrice,
		NotionalUSD:   notional,
		RiskAmountUSD: riskAmount,
		RiskPct:       riskAmount / in.EquityUSD,
		MethodWeights: weights,
		Fractions:     fractions,
	}
}

// kellyFraction: f = p - (1-p)/b with the win probability blended from
// fused confidence and historical win rate, payoff ratio fixed at 2, and
// the result capped well below full Kelly.
func (s *Sizer) kellyFraction(in Input) float64 {
	winRate := 0.5
	if in.HasWinRate {
		winRate = in.WinRate
	}
	p := 0.5 + 0.25*clamp01(in.Confidence) + 0.25*(winRate-0.5)*2
	p = clamp01(p)
	const payoff = 2.0
	f := p - (1-p)/payoff
	if f < 0 {
		return 0
	}
	if f > s.cfg.KellyCap {
		return s.cfg.KellyCap
	}
	return f
}

// fixedFraction risks a fixed share of equity against the stop distance.
func (s *Sizer) fixedFraction(stopPct float64) float64 {
	f := s.cfg.FixedFraction / stopPct
	if f > 1 {
		return 1
	}
	return f
}

// volFraction targets constant portfolio volatility, scaled by confidence.
func (s *Sizer) volFraction(in Input) float64 {
	if in.RealizedVol <= 0 {
		return s.cfg.FixedFraction
	}
	f := s.cfg.TargetVol / in.RealizedVol * clamp01(in.Confidence)
	if f > 1 {
		return 1
	}
	return f
}

func (s *Sizer) methodWeights() map[string]float64 {
	var table map[string]float64
	if s.weightsFn != nil {
		table = s.weightsFn()
	}
	out := make(map[string]float64, 3)
	for name, def := range map[string]float64{methodKelly: 0.4, methodFixed: 0.3, methodVol: 0.3} {
		out[name] = def
	}
	if len(s.cfg.MethodWeights) > 0 {
		for name, w := range s.cfg.MethodWeights {
			if w >= 0 {
				out[name] = w
			}
		}
	}
	for name, w := range table {
		if w >= 0 {
			out[name] = w
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampMult(v float64) float64 {
	if v <= 0 {
		return 1
	}
	if v > 1 {
		return 1
	}
	return v
}
