package risk

import (
	"fusor/internal/config"
	"fusor/internal/market"
)

// Input carries everything one assessment may read. ProposedNotionalUSD is
// the pre-adjustment notional the sizer would open at full weight.
type Input struct {
	Symbol              string
	Market              market.Context
	Portfolio           Portfolio
	ProposedNotionalUSD float64
}

// Assessor computes the per-cycle risk assessment. Pure and deterministic.
type Assessor struct {
	cfg config.RiskConfig
}

func NewAssessor(cfg config.RiskConfig) *Assessor {
	if len(cfg.ComponentWeights) == 0 {
		cfg.ComponentWeights = map[string]float64{
			"var": 0.35, "shortfall": 0.25, "concentration": 0.2, "liquidity": 0.2,
		}
	}
	if len(cfg.Bands) == 0 {
		cfg.Bands = []config.RiskBand{
			{MinScore: 8, Multiplier: 0.3},
			{MinScore: 6, Multiplier: 0.5},
			{MinScore: 4, Multiplier: 0.7},
			{MinScore: 2, Multiplier: 0.85},
			{MinScore: 0, Multiplier: 1.0},
		}
	}
	return &Assessor{cfg: cfg}
}

// Assess scores the proposed exposure. Missing required market inputs
// (volatility or price) degrade to the maximal-caution default instead of
// failing the pipeline.
func (a *Assessor) Assess(in Input) Assessment {
	if in.Market.RealizedVol <= 0 || in.Market.LastPrice <= 0 || in.Portfolio.EquityUSD <= 0 {
		return a.conservativeDefault()
	}

	z := zScore(a.cfg.VaRConfidence)
	varUSD := in.ProposedNotionalUSD * in.Market.RealizedVol * z
	// Expected shortfall for a normal tail runs ~25% beyond VaR at the 95%
	// level; kept as a fixed proxy factor.
	esUSD := varUSD * 1.25

	equity := in.Portfolio.EquityUSD
	varComp := clipComponent(varUSD / equity * 500)      // 2% of equity at risk = 10
	esComp := clipComponent(esUSD / equity * 400)        // 2.5% = 10
	concComp := a.concentration(in, equity)
	liqComp, liquidityKnown := a.liquidity(in)

	weights := a.cfg.ComponentWeights
	totalWeight := weights["var"] + weights["shortfall"] + weights["concentration"] + weights["liquidity"]
	score := 0.0
	if totalWeight > 0 {
		score = (varComp*weights["var"] +
			esComp*weights["shortfall"] +
			concComp*weights["concentration"] +
			liqComp*weights["liquidity"]) / totalWeight
	}
	score = clipComponent(score)

	return Assessment{
		Score:             score,
		VaRUSD:            varUSD,
		ExpectedShortfall: esUSD,
		Concentration:     concComp,
		Liquidity:         liqComp,
		Level:             levelFromScore(score),
		Multiplier:        a.multiplierFor(score),
		DataComplete:      liquidityKnown,
	}
}

func (a *Assessor) conservativeDefault() Assessment {
	return Assessment{
		Score:         10,
		Concentration: 10,
		Liquidity:     10,
		Level:         LevelExtreme,
		Multiplier:    a.multiplierFor(10),
		DataComplete:  false,
	}
}

// concentration weighs same-symbol exposure fully and the rest of the book
// at a flat 0.3 correlation proxy; crypto pairs rarely decorrelate.
func (a *Assessor) concentration(in Input, equity float64) float64 {
	same := in.Portfolio.SymbolExposureUSD(in.Symbol)
	other := in.Portfolio.ExposureUSD() - same
	correlated := same + 0.3*other + in.ProposedNotionalUSD
	return clipComponent(correlated / equity * 25) // 40% correlated exposure = 10
}

// liquidity scores the proposed size against book depth near the touch,
// plus a spread penalty. Unknown depth scores pessimistically but does not
// trip the full conservative default.
func (a *Assessor) liquidity(in Input) (float64, bool) {
	depth := in.Market.Depth
	if depth == nil {
		return 7.5, false
	}
	side := depth.BidDepthUSD
	if depth.AskDepthUSD < side {
		side = depth.AskDepthUSD
	}
	if side <= 0 {
		return 10, true
	}
	comp := in.ProposedNotionalUSD / side * 20 // 50% of near-touch depth = 10
	comp += depth.SpreadPct * 100
	return clipComponent(comp), true
}

// multiplierFor walks the descending band table and returns the first
// matching multiplier.
func (a *Assessor) multiplierFor(score float64) float64 {
	for _, band := range a.cfg.Bands {
		if score >= band.MinScore {
			return band.Multiplier
		}
	}
	return 1
}

func clipComponent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// zScore maps common confidence levels to the normal quantile; anything
// else falls back to the 95% value.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.326
	case confidence >= 0.975:
		return 1.96
	case confidence >= 0.95:
		return 1.645
	case confidence >= 0.90:
		return 1.282
	default:
		return 1.645
	}
}
