// Package signal defines the inbound strategy signal model and the
// normalization step that puts submissions on a common directional scale.
package signal

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidSignal marks a submission that failed schema or range checks.
// Invalid signals are dropped; the cycle continues with whatever remains.
var ErrInvalidSignal = errors.New("invalid signal")

// Direction is the side an agent recommends.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionHold  Direction = "hold"
)

// NormalizeDirection folds common synonyms onto the canonical directions.
func NormalizeDirection(raw string) Direction {
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	raw = replacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
	switch raw {
	case "long", "buy", "open_long", "go_long", "bullish":
		return DirectionLong
	case "short", "sell", "open_short", "go_short", "bearish":
		return DirectionShort
	case "hold", "wait", "stay", "neutral", "flat":
		return DirectionHold
	default:
		return Direction(raw)
	}
}

func (d Direction) Valid() bool {
	switch d {
	case DirectionLong, DirectionShort, DirectionHold:
		return true
	}
	return false
}

// Sign maps the direction onto the [-1,1] scale.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// RiskParams carries the risk posture an agent attached to its signal.
type RiskParams struct {
	StopLossPct    float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct  float64 `json:"take_profit_pct,omitempty"`
	MaxPositionPct float64 `json:"max_position_pct,omitempty"`
	Approach       string  `json:"approach,omitempty"` // aggressive | moderate | conservative
}

// Signal is one strategy submission. Immutable once accepted; the fusion
// core only ever references it.
type Signal struct {
	AgentID     string     `json:"agent_id"`
	Symbol      string     `json:"symbol"`
	Timeframe   string     `json:"timeframe"`
	Direction   Direction  `json:"direction"`
	Confidence  float64    `json:"confidence"` // raw, [0,1]
	Reasoning   string     `json:"reasoning,omitempty"`
	Indicators  []string   `json:"indicators,omitempty"`
	RiskParams  RiskParams `json:"risk_params,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// Normalized is a signal rescaled onto [-1,1] with freshness decay applied.
// Derived per cycle and discarded afterward.
type Normalized struct {
	Source     string
	Value      float64 // [-1,1]
	Confidence float64 // [0,1], freshness-decayed
	Freshness  float64 // [0,1], 1 = just submitted
}

// Rejection records why a submission was dropped during normalization.
type Rejection struct {
	AgentID string
	Reason  string
}
