package signal

import (
	"fmt"
	"strings"
	"time"
)

// Normalizer validates signals against a (symbol, timeframe) request and
// rescales them onto [-1,1]. Pure: output depends only on the inputs and
// the supplied clock.
type Normalizer struct {
	Staleness time.Duration
	nowFn     func() time.Time
}

func NewNormalizer(staleness time.Duration) *Normalizer {
	if staleness <= 0 {
		staleness = 90 * time.Second
	}
	return &Normalizer{Staleness: staleness, nowFn: time.Now}
}

// WithClock overrides the clock, for tests.
func (n *Normalizer) WithClock(fn func() time.Time) *Normalizer {
	if fn != nil {
		n.nowFn = fn
	}
	return n
}

// Normalize converts the accepted subset of signals for one cycle. Signals
// failing range, staleness or pair checks come back as rejections.
func (n *Normalizer) Normalize(symbol, timeframe string, signals []Signal) ([]Normalized, []Rejection) {
	now := n.nowFn().UTC()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	timeframe = strings.TrimSpace(timeframe)

	out := make([]Normalized, 0, len(signals))
	var rejected []Rejection
	for _, sig := range signals {
		if reason := n.rejectReason(symbol, timeframe, sig, now); reason != "" {
			rejected = append(rejected, Rejection{AgentID: sig.AgentID, Reason: reason})
			continue
		}
		freshness := n.freshness(sig.SubmittedAt, now)
		confidence := sig.Confidence * freshness
		out = append(out, Normalized{
			Source:     sig.AgentID,
			Value:      sig.Direction.Sign() * confidence,
			Confidence: confidence,
			Freshness:  freshness,
		})
	}
	return out, rejected
}

func (n *Normalizer) rejectReason(symbol, timeframe string, sig Signal, now time.Time) string {
	if strings.TrimSpace(sig.AgentID) == "" {
		return "missing agent id"
	}
	if !sig.Direction.Valid() {
		return fmt.Sprintf("unknown direction %q", sig.Direction)
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return fmt.Sprintf("confidence %.3f outside [0,1]", sig.Confidence)
	}
	if !strings.EqualFold(sig.Symbol, symbol) {
		return fmt.Sprintf("symbol %s does not match request %s", sig.Symbol, symbol)
	}
	if !strings.EqualFold(sig.Timeframe, timeframe) {
		return fmt.Sprintf("timeframe %s does not match request %s", sig.Timeframe, timeframe)
	}
	if sig.SubmittedAt.After(now.Add(time.Second)) {
		return "submitted_at is in the future"
	}
	if now.Sub(sig.SubmittedAt) >= n.Staleness {
		return fmt.Sprintf("stale: submitted %s ago", now.Sub(sig.SubmittedAt).Truncate(time.Second))
	}
	return ""
}

// freshness decays linearly from 1 at submission to 0 at the staleness
// boundary.
func (n *Normalizer) freshness(submittedAt, now time.Time) float64 {
	age := now.Sub(submittedAt)
	if age <= 0 {
		return 1
	}
	f := 1 - float64(age)/float64(n.Staleness)
	if f < 0 {
		return 0
	}
	return f
}
