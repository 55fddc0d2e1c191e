// Package decision assembles the final trading decision emitted once per
// fusion cycle.
package decision

import (
	"time"

	"fusor/internal/conflict"
	"fusor/internal/signal"
)

// Class is the strength bucket for the final call.
type Class string

const (
	ClassStrongBuy  Class = "strong_buy"
	ClassBuy        Class = "buy"
	ClassHold       Class = "hold"
	ClassSell       Class = "sell"
	ClassStrongSell Class = "strong_sell"
)

// Classify maps the fused value and confidence to a class. Strong calls
// need both a committed direction and real conviction behind it.
func Classify(value, confidence float64) Class {
	switch {
	case value >= 0.6 && confidence >= 0.65:
		return ClassStrongBuy
	case value >= 0.2:
		return ClassBuy
	case value <= -0.6 && confidence >= 0.65:
		return ClassStrongSell
	case value <= -0.2:
		return ClassSell
	default:
		return ClassHold
	}
}

// IsActionable reports whether the class opens a position.
func (c Class) IsActionable() bool {
	return c != ClassHold
}

// TradingDecision is the single executable output of a cycle. Immutable
// after creation; corrections are new decisions carrying SupersedesID.
type TradingDecision struct {
	ID           string                 `json:"id"`
	SupersedesID string                 `json:"supersedes_id,omitempty"`
	Symbol       string                 `json:"symbol"`
	Timeframe    string                 `json:"timeframe"`
	Timestamp    time.Time              `json:"timestamp"`
	Class        Class                  `json:"decision_class"`
	Direction    signal.Direction       `json:"direction"`
	Confidence   float64                `json:"confidence"`
	EntryPrice   float64                `json:"entry_price,omitempty"`
	PositionSize float64                `json:"position_size,omitempty"`
	NotionalUSD  float64                `json:"notional_usd,omitempty"`
	StopLoss     float64                `json:"stop_loss,omitempty"`
	TakeProfit   float64                `json:"take_profit,omitempty"`
	RiskAmount   float64                `json:"risk_amount_usd,omitempty"`
	QuorumMet    bool                   `json:"quorum_met"`
	Abstentions  []string               `json:"abstentions,omitempty"`
	Reasoning    string                 `json:"reasoning"`
	Alternatives []conflict.Alternative `json:"alternative_scenarios,omitempty"`
}
