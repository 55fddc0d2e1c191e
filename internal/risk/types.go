// Package risk scores a resolved signal against portfolio and market state
// and maps the score to a position-size multiplier.
package risk

// Level buckets the overall risk score.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelElevated Level = "elevated"
	LevelHigh     Level = "high"
	LevelExtreme  Level = "extreme"
)

func levelFromScore(score float64) Level {
	switch {
	case score >= 8:
		return LevelExtreme
	case score >= 6:
		return LevelHigh
	case score >= 4:
		return LevelElevated
	case score >= 2:
		return LevelModerate
	default:
		return LevelLow
	}
}

// Position is an open exposure in the portfolio.
type Position struct {
	Symbol      string  `json:"symbol"`
	NotionalUSD float64 `json:"notional_usd"`
}

// Portfolio is the current account state, supplied read-only per cycle.
type Portfolio struct {
	EquityUSD float64    `json:"equity_usd"`
	Positions []Position `json:"positions,omitempty"`
}

func (p Portfolio) ExposureUSD() float64 {
	total := 0.0
	for _, pos := range p.Positions {
		n := pos.NotionalUSD
		if n < 0 {
			n = -n
		}
		total += n
	}
	return total
}

func (p Portfolio) SymbolExposureUSD(symbol string) float64 {
	total := 0.0
	for _, pos := range p.Positions {
		if pos.Symbol != symbol {
			continue
		}
		n := pos.NotionalUSD
		if n < 0 {
			n = -n
		}
		total += n
	}
	return total
}

// Assessment is the per-cycle risk verdict. Lifetime is one decision cycle.
type Assessment struct {
	Score             float64 `json:"overall_risk_score"` // [0,10]
	VaRUSD            float64 `json:"var_usd"`
	ExpectedShortfall float64 `json:"expected_shortfall_usd"`
	Concentration     float64 `json:"concentration_risk"` // [0,10]
	Liquidity         float64 `json:"liquidity_risk"`     // [0,10]
	Level             Level   `json:"risk_level"`
	Multiplier        float64 `json:"multiplier"` // (0,1]
	DataComplete      bool    `json:"data_complete"`
}
