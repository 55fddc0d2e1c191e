package app

import (
	"context"

	"fusor/internal/decision"
	"fusor/internal/logger"
	"fusor/internal/store/decisionlog"
)

// logEmitter appends each decision to the SQLite log and writes a summary
// line. Append failures are surfaced to the coordinator, which logs and
// keeps the pair running.
type logEmitter struct {
	store *decisionlog.Store
}

func (e *logEmitter) Emit(ctx context.Context, d decision.TradingDecision) error {
	logger.Infof("decision %s %s %s class=%s conf=%.2f size=%.6f quorum_met=%v",
		d.ID, d.Symbol, d.Timeframe, d.Class, d.Confidence, d.PositionSize, d.QuorumMet)
	if e.store == nil {
		return nil
	}
	return e.store.Append(ctx, d)
}
