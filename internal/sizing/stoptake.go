package sizing

import (
	"fmt"

	"fusor/internal/config"
	"fusor/internal/market"
	"fusor/internal/signal"
)

// Levels are the protective prices for one decision. Trailing parameters
// are derived here but managed by the execution collaborator.
type Levels struct {
	StopLoss         float64 `json:"stop_loss"`
	TakeProfit       float64 `json:"take_profit"`
	StopDistancePct  float64 `json:"stop_distance_pct"`
	RiskReward       float64 `json:"risk_reward"`
	TrailTriggerPct  float64 `json:"trail_trigger_pct,omitempty"`
	TrailDistancePct float64 `json:"trail_distance_pct,omitempty"`
}

// StopTakeCalculator derives stop-loss and take-profit levels from
// volatility and price structure.
type StopTakeCalculator struct {
	cfg config.StopsConfig
}

func NewStopTakeCalculator(cfg config.StopsConfig) *StopTakeCalculator {
	if cfg.ATRMultiplier <= 0 {
		cfg.ATRMultiplier = 2
	}
	if cfg.MinRiskReward < 1 {
		cfg.MinRiskReward = 2
	}
	if cfg.StructureBufferPct <= 0 {
		cfg.StructureBufferPct = 0.002
	}
	if cfg.TrailTriggerMult <= 0 {
		cfg.TrailTriggerMult = 3
	}
	if cfg.TrailMult <= 0 || cfg.TrailMult >= cfg.TrailTriggerMult {
		cfg.TrailMult = cfg.TrailTriggerMult / 2
	}
	return &StopTakeCalculator{cfg: cfg}
}

// Compute picks the stop as the larger of the ATR-multiple offset and the
// nearest structural level plus buffer, then places the take-profit at the
// configured minimum risk-reward from the stop.
func (c *StopTakeCalculator) Compute(direction signal.Direction, entry float64, mctx market.Context) (Levels, error) {
	if entry <= 0 {
		return Levels{}, fmt.Errorf("stop calculator: entry price must be > 0")
	}
	long := direction != signal.DirectionShort

	stopPct := 0.0
	if mctx.ATR > 0 {
		stopPct = mctx.ATR * c.cfg.ATRMultiplier / entry
	}
	if structPct, ok := c.structureStopPct(entry, mctx, long); ok && structPct > stopPct {
		stopPct = structPct
	}
	if stopPct <= 0 {
		// No volatility data and no structure: fixed-percent stop so the
		// decision still carries a protective level.
		stopPct = fallbackStopPct
	}

	levels := Levels{
		StopLoss:        offsetLevel(entry, stopPct, long),
		TakeProfit:      targetLevel(entry, stopPct*c.cfg.MinRiskReward, long),
		StopDistancePct: stopPct,
		RiskReward:      c.cfg.MinRiskReward,
	}
	if mctx.ATR > 0 {
		levels.TrailTriggerPct = mctx.ATR * c.cfg.TrailTriggerMult / entry
		levels.TrailDistancePct = mctx.ATR * c.cfg.TrailMult / entry
	}
	return levels, nil
}

// structureStopPct finds the nearest support (long) or resistance (short)
// on the protective side of entry and pads it with the buffer.
func (c *StopTakeCalculator) structureStopPct(entry float64, mctx market.Context, long bool) (float64, bool) {
	var best float64
	found := false
	if long {
		for _, level := range mctx.Supports {
			if level <= 0 || level >= entry {
				continue
			}
			if !found || level > best {
				best = level
				found = true
			}
		}
		if !found {
			return 0, false
		}
		padded := best * (1 - c.cfg.StructureBufferPct)
		return (entry - padded) / entry, true
	}
	for _, level := range mctx.Resistances {
		if level <= entry {
			continue
		}
		if !found || level < best {
			best = level
			found = true
		}
	}
	if !found {
		return 0, false
	}
	padded := best * (1 + c.cfg.StructureBufferPct)
	return (padded - entry) / entry, true
}
