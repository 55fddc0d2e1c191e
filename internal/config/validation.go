package config

import (
	"fmt"
	"strings"

	"fusor/internal/pkg/symbol"
)

// Validate checks every section. Load calls it after defaults are applied;
// callers constructing a Config directly should call it themselves.
func (c *Config) Validate() error {
	return validate(c)
}

func validate(c *Config) error {
	if err := c.Fusion.validate(); err != nil {
		return err
	}
	if err := c.Conflict.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Sizing.validate(); err != nil {
		return err
	}
	if err := c.Stops.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	return nil
}

func (f *FusionConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(f.Algorithm)) {
	case "weighted", "bayesian", "ensemble":
	default:
		return fmt.Errorf("fusion.algorithm must be weighted, bayesian or ensemble (got %q)", f.Algorithm)
	}
	if f.PriorStrength <= 0 {
		return fmt.Errorf("fusion.prior_strength must be > 0")
	}
	return nil
}

func (c *ConflictConfig) validate() error {
	if c.ConfidenceGap < 0 || c.ConfidenceGap > 1 {
		return fmt.Errorf("conflict.confidence_gap must be within [0,1]")
	}
	if c.FallbackMultiplier <= 0 || c.FallbackMultiplier > 1 {
		return fmt.Errorf("conflict.fallback_multiplier must be within (0,1]")
	}
	for name, w := range c.AnalyzerWeights {
		if w < 0 {
			return fmt.Errorf("conflict.analyzer_weights.%s cannot be negative", name)
		}
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.VaRConfidence <= 0.5 || r.VaRConfidence >= 1 {
		return fmt.Errorf("risk.var_confidence must be within (0.5,1)")
	}
	for name, w := range r.ComponentWeights {
		if w < 0 {
			return fmt.Errorf("risk.component_weights.%s cannot be negative", name)
		}
	}
	prev := -1.0
	for i, band := range r.Bands {
		if band.Multiplier <= 0 || band.Multiplier > 1 {
			return fmt.Errorf("risk.bands[%d].multiplier must be within (0,1]", i)
		}
		if prev >= 0 && band.MinScore >= prev {
			return fmt.Errorf("risk.bands must be ordered by descending min_score")
		}
		prev = band.MinScore
	}
	return nil
}

func (s *SizingConfig) validate() error {
	if s.KellyCap <= 0 || s.KellyCap > 1 {
		return fmt.Errorf("sizing.kelly_cap must be within (0,1]")
	}
	if s.FixedFraction <= 0 || s.FixedFraction > 1 {
		return fmt.Errorf("sizing.fixed_fraction must be within (0,1]")
	}
	if s.MaxExposurePct <= 0 || s.MaxExposurePct > 1 {
		return fmt.Errorf("sizing.max_exposure_pct must be within (0,1]")
	}
	total := 0.0
	for name, w := range s.MethodWeights {
		if w < 0 {
			return fmt.Errorf("sizing.method_weights.%s cannot be negative", name)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("sizing.method_weights must have positive total weight")
	}
	return nil
}

func (s *StopsConfig) validate() error {
	if s.ATRMultiplier <= 0 {
		return fmt.Errorf("stops.atr_multiplier must be > 0")
	}
	if s.MinRiskReward < 1 {
		return fmt.Errorf("stops.min_risk_reward must be >= 1")
	}
	if s.TrailMult >= s.TrailTriggerMult {
		return fmt.Errorf("stops.trail_multiplier must be smaller than trail_trigger_multiplier")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if p.Quorum < 1 {
		return fmt.Errorf("pipeline.quorum must be >= 1")
	}
	if len(p.Pairs) == 0 {
		return fmt.Errorf("pipeline.pairs requires at least one symbol/timeframe pair")
	}
	seen := make(map[string]bool, len(p.Pairs))
	for i, pair := range p.Pairs {
		sym := symbol.Canonical(pair.Symbol)
		tf := strings.TrimSpace(pair.Timeframe)
		if sym == "" || tf == "" {
			return fmt.Errorf("pipeline.pairs[%d] requires symbol and timeframe", i)
		}
		key := symbol.Key(sym, tf)
		if seen[key] {
			return fmt.Errorf("pipeline.pairs[%d] duplicates %s %s", i, sym, tf)
		}
		seen[key] = true
		p.Pairs[i].Symbol = sym
		p.Pairs[i].Timeframe = tf
	}
	return nil
}
