package decision

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fusor/internal/conflict"
	"fusor/internal/fusion"
	"fusor/internal/market"
	"fusor/internal/risk"
	"fusor/internal/signal"
	"fusor/internal/sizing"

	"github.com/google/uuid"
)

// AssembleInput collects every stage output feeding the final decision.
type AssembleInput struct {
	Symbol       string
	Timeframe    string
	Timestamp    time.Time
	Fused        fusion.Fused
	Report       conflict.Report
	Resolution   conflict.Resolution
	Assessment   risk.Assessment
	Sized        sizing.Result
	Levels       sizing.Levels
	Market       market.Context
	Rejections   []signal.Rejection
	Abstentions  []string
	QuorumMet    bool
	SupersedesID string
}

// Assembler packages stage outputs into an immutable TradingDecision.
// Performs no I/O.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// Assemble classifies the final call and attaches the reasoning trace.
func (a *Assembler) Assemble(in AssembleInput) TradingDecision {
	class := Classify(in.Fused.Value, in.Fused.Confidence)
	direction := directionFor(in.Fused.Value, class)

	d := TradingDecision{
		ID:           uuid.NewString(),
		SupersedesID: in.SupersedesID,
		Symbol:       in.Symbol,
		Timeframe:    in.Timeframe,
		Timestamp:    in.Timestamp.UTC(),
		Class:        class,
		Direction:    direction,
		Confidence:   in.Fused.Confidence,
		QuorumMet:    in.QuorumMet,
		Abstentions:  append([]string(nil), in.Abstentions...),
		Alternatives: append([]conflict.Alternative(nil), in.Resolution.Alternatives...),
	}
	if class.IsActionable() {
		d.EntryPrice = in.Market.LastPrice
		d.PositionSize = in.Sized.SizeUnits
		d.NotionalUSD = in.Sized.NotionalUSD
		d.StopLoss = in.Levels.StopLoss
		d.TakeProfit = in.Levels.TakeProfit
		d.RiskAmount = in.Sized.RiskAmountUSD
	}
	d.Reasoning = buildReasoning(in, d)
	return d
}

// Hold builds the zero-confidence hold emitted when no signals arrive
// before the cycle timeout.
func (a *Assembler) Hold(symbol, timeframe string, ts time.Time, abstentions []string, reason string) TradingDecision {
	d := TradingDecision{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Timeframe:   timeframe,
		Timestamp:   ts.UTC(),
		Class:       ClassHold,
		Direction:   signal.DirectionHold,
		Confidence:  0,
		QuorumMet:   false,
		Abstentions: append([]string(nil), abstentions...),
		Reasoning:   reason,
	}
	return d
}

func directionFor(value float64, class Class) signal.Direction {
	if class == ClassHold {
		return signal.DirectionHold
	}
	if value >= 0 {
		return signal.DirectionLong
	}
	return signal.DirectionShort
}

// buildReasoning renders the human-readable trace: contributing sources,
// conflict outcome, risk band and sizing summary.
func buildReasoning(in AssembleInput, d TradingDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: fused %s value=%.3f confidence=%.2f", in.Symbol, in.Timeframe, in.Fused.Algorithm, in.Fused.Value, in.Fused.Confidence)
	if !in.QuorumMet {
		b.WriteString(" (partial quorum)")
	}
	b.WriteString("\n")

	if len(in.Fused.Weights) > 0 {
		sources := make([]string, 0, len(in.Fused.Weights))
		for src := range in.Fused.Weights {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		parts := make([]string, 0, len(sources))
		for _, src := range sources {
			parts = append(parts, fmt.Sprintf("%s=%.2f", src, in.Fused.Weights[src]))
		}
		fmt.Fprintf(&b, "contributors: %s\n", strings.Join(parts, " "))
	}

	switch in.Report.Level {
	case conflict.LevelNone:
		b.WriteString("conflict: none\n")
	default:
		fmt.Fprintf(&b, "conflict: %s (%.2f)", in.Report.Level, in.Report.Score)
		if len(in.Report.RootCauses) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(in.Report.RootCauses, "; "))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "resolution: %s via %s", in.Resolution.State, in.Resolution.Strategy)
		if in.Resolution.SizeMultiplier < 1 {
			fmt.Fprintf(&b, " size x%.2f", in.Resolution.SizeMultiplier)
		}
		if in.Resolution.Rationale != "" {
			fmt.Fprintf(&b, " (%s)", in.Resolution.Rationale)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "risk: score=%.1f level=%s multiplier=x%.2f", in.Assessment.Score, in.Assessment.Level, in.Assessment.Multiplier)
	if !in.Assessment.DataComplete {
		b.WriteString(" (incomplete market data, conservative)")
	}
	b.WriteString("\n")

	if d.Class.IsActionable() {
		fmt.Fprintf(&b, "sizing: %.4f units (%.2f USD) risk=%.2f USD stop=%.4f take=%.4f\n",
			d.PositionSize, d.NotionalUSD, d.RiskAmount, d.StopLoss, d.TakeProfit)
	} else {
		b.WriteString("sizing: no position\n")
	}

	for _, rej := range in.Rejections {
		fmt.Fprintf(&b, "dropped %s: %s\n", rej.AgentID, rej.Reason)
	}
	if len(d.Abstentions) > 0 {
		fmt.Fprintf(&b, "abstained: %s\n", strings.Join(d.Abstentions, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
