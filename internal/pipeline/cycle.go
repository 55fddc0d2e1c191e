package pipeline

import (
	"context"
	"fmt"
	"time"

	"fusor/internal/config"
	"fusor/internal/conflict"
	"fusor/internal/decision"
	"fusor/internal/fusion"
	"fusor/internal/logger"
	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/risk"
	"fusor/internal/signal"
	"fusor/internal/sizing"
	"fusor/internal/telemetry"
)

// Stages bundles the per-cycle processing components. All of them are
// stateless between cycles; shared state lives in the performance tracker
// and the weights registry behind them.
type Stages struct {
	Normalizer *signal.Normalizer
	Engine     *fusion.Engine
	Detector   *conflict.Detector
	Resolver   *conflict.Resolver
	Assessor   *risk.Assessor
	Stops      *sizing.StopTakeCalculator
	Sizer      *sizing.Sizer
	Assembler  *decision.Assembler
	Tracker    *performance.Tracker
}

// cycleInput is one triggered decision round for a pair.
type cycleInput struct {
	Pair         config.PairConfig
	Signals      []signal.Signal
	Market       market.Context
	Portfolio    risk.Portfolio
	QuorumMet    bool
	Abstentions  []string
	SupersedesID string
	AsOf         time.Time
}

// runCycle drives one full pass: normalize, fuse, detect, resolve, assess,
// derive stops, size, assemble. It checks ctx between stages so a shutdown
// or deadline abandons the round instead of emitting a stale decision.
func (s Stages) runCycle(ctx context.Context, in cycleInput) (decision.TradingDecision, error) {
	symbol, timeframe := in.Pair.Symbol, in.Pair.Timeframe

	normalized, rejections := s.Normalizer.Normalize(symbol, timeframe, in.Signals)
	for _, rej := range rejections {
		telemetry.RecordDroppedSignal(symbol, "invalid")
		logger.Warnf("pipeline: %s %s dropped signal from %s: %s", symbol, timeframe, rej.AgentID, rej.Reason)
	}
	if len(normalized) == 0 {
		reason := "no signals arrived before the cycle deadline"
		if len(in.Signals) > 0 {
			reason = "all submitted signals were rejected during normalization"
		}
		hold := s.Assembler.Hold(symbol, timeframe, in.AsOf, in.Abstentions, reason)
		hold.SupersedesID = in.SupersedesID
		hold.QuorumMet = in.QuorumMet
		return hold, nil
	}
	if err := ctx.Err(); err != nil {
		return decision.TradingDecision{}, err
	}

	perf := s.Tracker.Current()
	fused, err := s.Engine.Fuse(fusion.Input{
		Signals: normalized,
		Market:  in.Market,
		Perf:    perf,
		AsOf:    in.AsOf,
	})
	if err != nil {
		return decision.TradingDecision{}, fmt.Errorf("fusion %s %s: %w", symbol, timeframe, err)
	}
	if err := ctx.Err(); err != nil {
		return decision.TradingDecision{}, err
	}

	report := s.Detector.Detect(in.Signals, in.Market)
	if report.Level != conflict.LevelNone {
		telemetry.RecordConflict(symbol, string(report.Level))
	}
	resolution := s.Resolver.Resolve(report, in.Signals, normalized, in.Market, perf)
	switch resolution.State {
	case conflict.StateEscalated:
		telemetry.RecordFallback(symbol, "conflict_escalated")
		logger.Warnf("pipeline: %s %s conflict escalated, conservative fallback x%.2f", symbol, timeframe, resolution.SizeMultiplier)
	case conflict.StateResolved:
		if len(resolution.Survivors) < len(normalized) {
			refused, err := s.refuse(normalized, resolution.Survivors, in, perf)
			if err != nil {
				return decision.TradingDecision{}, fmt.Errorf("re-fusion %s %s: %w", symbol, timeframe, err)
			}
			fused = refused
		}
	}
	if err := ctx.Err(); err != nil {
		return decision.TradingDecision{}, err
	}

	class := decision.Classify(fused.Value, fused.Confidence)
	if class.IsActionable() && in.Market.LastPrice <= 0 {
		// Missing market data degrades to a hold, it never kills the cycle.
		telemetry.RecordFallback(symbol, "market_data_unavailable")
		logger.Warnf("pipeline: %s %s no market price available, holding instead of opening", symbol, timeframe)
		hold := s.Assembler.Hold(symbol, timeframe, in.AsOf, in.Abstentions,
			"no market price available to size a position")
		hold.SupersedesID = in.SupersedesID
		hold.QuorumMet = in.QuorumMet
		return hold, nil
	}
	var (
		levels sizing.Levels
		sized  sizing.Result
	)
	assessIn := risk.Input{
		Symbol:    symbol,
		Market:    in.Market,
		Portfolio: in.Portfolio,
	}
	if class.IsActionable() {
		direction := signal.DirectionLong
		if fused.Value < 0 {
			direction = signal.DirectionShort
		}
		levels, err = s.Stops.Compute(direction, in.Market.LastPrice, in.Market)
		if err != nil {
			return decision.TradingDecision{}, fmt.Errorf("stop derivation %s %s: %w", symbol, timeframe, err)
		}

		sizeIn := sizing.Input{
			Confidence:      fused.Confidence,
			EquityUSD:       in.Portfolio.EquityUSD,
			EntryPrice:      in.Market.LastPrice,
			StopDistancePct: levels.StopDistancePct,
			RealizedVol:     in.Market.RealizedVol,
			RiskMultiplier:  1,
			ResolutionMult:  1,
		}
		if len(fused.Weights) > 0 {
			sizeIn.WinRate, sizeIn.HasWinRate = blendedWinRate(fused.Weights, perf)
		}
		// First pass at full weight feeds the risk assessment; the second
		// applies the resulting band multiplier.
		unadjusted := s.Sizer.Size(sizeIn)
		assessIn.ProposedNotionalUSD = unadjusted.NotionalUSD
	}

	assessment := s.Assessor.Assess(assessIn)
	if err := ctx.Err(); err != nil {
		return decision.TradingDecision{}, err
	}

	if class.IsActionable() {
		sizeIn := sizing.Input{
			Confidence:      fused.Confidence,
			EquityUSD:       in.Portfolio.EquityUSD,
			EntryPrice:      in.Market.LastPrice,
			StopDistancePct: levels.StopDistancePct,
			RealizedVol:     in.Market.RealizedVol,
			RiskMultiplier:  assessment.Multiplier,
			ResolutionMult:  resolution.SizeMultiplier,
		}
		if len(fused.Weights) > 0 {
			sizeIn.WinRate, sizeIn.HasWinRate = blendedWinRate(fused.Weights, perf)
		}
		sized = s.Sizer.Size(sizeIn)
	}

	d := s.Assembler.Assemble(decision.AssembleInput{
		Symbol:       symbol,
		Timeframe:    timeframe,
		Timestamp:    in.AsOf,
		Fused:        fused,
		Report:       report,
		Resolution:   resolution,
		Assessment:   assessment,
		Sized:        sized,
		Levels:       levels,
		Market:       in.Market,
		Rejections:   rejections,
		Abstentions:  in.Abstentions,
		QuorumMet:    in.QuorumMet,
		SupersedesID: in.SupersedesID,
	})
	return d, nil
}

// refuse reruns fusion over the surviving subset after a resolved conflict.
func (s Stages) refuse(normalized []signal.Normalized, survivors []string, in cycleInput, perf performance.Snapshot) (fusion.Fused, error) {
	keep := make(map[string]bool, len(survivors))
	for _, src := range survivors {
		keep[src] = true
	}
	subset := make([]signal.Normalized, 0, len(survivors))
	for _, n := range normalized {
		if keep[n.Source] {
			subset = append(subset, n)
		}
	}
	if len(subset) == 0 {
		subset = normalized
	}
	return s.Engine.Fuse(fusion.Input{
		Signals: subset,
		Market:  in.Market,
		Perf:    perf,
		AsOf:    in.AsOf,
	})
}

// blendedWinRate averages tracked win rates under the fusion weights. It
// reports false when no contributing agent has history yet.
func blendedWinRate(weights map[string]float64, perf performance.Snapshot) (float64, bool) {
	var sum, total float64
	for src, w := range weights {
		rate, ok := perf.WinRate(src)
		if !ok || w <= 0 {
			continue
		}
		sum += rate * w
		total += w
	}
	if total <= 0 {
		return 0, false
	}
	return sum / total, true
}
