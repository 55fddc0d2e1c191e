package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fusor/internal/config"
	"fusor/internal/decision"
	"fusor/internal/fusion"
	"fusor/internal/logger"
	"fusor/internal/market"
	"fusor/internal/pkg/symbol"
	"fusor/internal/risk"
	"fusor/internal/signal"
	"fusor/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownPair marks a submission for a pair no worker serves.
var ErrUnknownPair = errors.New("unknown trading pair")

// ErrInboxFull marks a submission dropped by the bounded mailbox.
var ErrInboxFull = errors.New("signal inbox full")

// Emitter receives each finished decision. Implementations must be safe
// for concurrent use across pair workers.
type Emitter interface {
	Emit(ctx context.Context, d decision.TradingDecision) error
}

// MarketProvider supplies the market context snapshot for a cycle.
type MarketProvider interface {
	Context(ctx context.Context, symbol, timeframe string) (market.Context, error)
}

// PortfolioProvider supplies the current account state for risk and sizing.
type PortfolioProvider interface {
	Portfolio(ctx context.Context) (risk.Portfolio, error)
}

// Coordinator owns one worker goroutine per configured pair. Each worker
// gathers submissions in rounds and triggers a decision cycle on quorum or
// on the round deadline, so slow agents delay a pair by at most one cycle
// timeout and decisions for a pair are emitted in order.
type Coordinator struct {
	cfg       config.PipelineConfig
	stages    Stages
	emitter   Emitter
	markets   MarketProvider
	portfolio PortfolioProvider
	inboxes   map[string]*inbox
	pairs     []config.PairConfig
	nowFn     func() time.Time
}

func NewCoordinator(cfg config.PipelineConfig, stages Stages, emitter Emitter, markets MarketProvider, portfolio PortfolioProvider) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		stages:    stages,
		emitter:   emitter,
		markets:   markets,
		portfolio: portfolio,
		inboxes:   make(map[string]*inbox, len(cfg.Pairs)),
		pairs:     cfg.Pairs,
		nowFn:     time.Now,
	}
	for _, pair := range cfg.Pairs {
		key := pairKey(pair.Symbol, pair.Timeframe)
		c.inboxes[key] = newInbox(pair.Symbol, pair.Timeframe, cfg.InboxCapacity)
	}
	return c
}

// Submit routes one accepted signal to its pair worker. It never blocks:
// a full inbox rejects the signal so the submitting transport can report
// backpressure instead of stalling.
func (c *Coordinator) Submit(sig signal.Signal) error {
	box, ok := c.inboxes[pairKey(sig.Symbol, sig.Timeframe)]
	if !ok {
		telemetry.RecordDroppedSignal(sig.Symbol, "unknown_pair")
		return fmt.Errorf("%w: %s %s", ErrUnknownPair, sig.Symbol, sig.Timeframe)
	}
	if !box.Offer(sig) {
		return fmt.Errorf("%w: %s %s", ErrInboxFull, sig.Symbol, sig.Timeframe)
	}
	return nil
}

// Run starts every pair worker and blocks until ctx is cancelled or a
// worker fails.
func (c *Coordinator) Run(ctx context.Context) error {
	if len(c.pairs) == 0 {
		return errors.New("no trading pairs configured")
	}
	group, gctx := errgroup.WithContext(ctx)
	for _, pair := range c.pairs {
		pair := pair
		group.Go(func() error {
			return c.runPair(gctx, pair)
		})
	}
	logger.Infof("coordinator: started %d pair workers, timeout=%s", len(c.pairs), c.cfg.CycleTimeout())
	return group.Wait()
}

func (c *Coordinator) runPair(ctx context.Context, pair config.PairConfig) error {
	box := c.inboxes[pairKey(pair.Symbol, pair.Timeframe)]
	timeout := c.cfg.CycleTimeout()
	quorum := c.quorum(pair)
	var lastID string

	logger.Infof("coordinator: %s %s worker up, expected_agents=%v quorum=%d",
		pair.Symbol, pair.Timeframe, pair.ExpectedAgents, quorum)

	for {
		arrived, timedOut, err := c.gatherRound(ctx, box, quorum, timeout)
		if err != nil {
			return err
		}

		signals := sortedSignals(arrived)
		abstentions := missingAgents(pair.ExpectedAgents, arrived)
		quorumMet := len(arrived) >= quorum

		start := c.nowFn()
		cycleCtx, cancel := context.WithTimeout(ctx, timeout)
		d, err := c.stages.runCycle(cycleCtx, cycleInput{
			Pair:         pair,
			Signals:      signals,
			Market:       c.marketContext(cycleCtx, pair),
			Portfolio:    c.currentPortfolio(cycleCtx),
			QuorumMet:    quorumMet,
			Abstentions:  abstentions,
			SupersedesID: lastID,
			AsOf:         start.UTC(),
		})
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			telemetry.RecordCycleAbort(pair.Symbol, abortReason(err))
			logger.Errorf("coordinator: %s %s cycle aborted: %v", pair.Symbol, pair.Timeframe, err)
			continue
		}

		if timedOut && len(signals) > 0 {
			logger.Warnf("coordinator: %s %s proceeded on timeout with %d/%d agents",
				pair.Symbol, pair.Timeframe, len(signals), len(pair.ExpectedAgents))
		}
		c.emit(ctx, d)
		lastID = d.ID
		telemetry.RecordDecision(pair.Symbol, string(d.Class))
		telemetry.ObserveCycle(pair.Symbol, pair.Timeframe, c.nowFn().Sub(start).Seconds())
	}
}

// gatherRound collects submissions until quorum is reached or the round
// deadline fires. A later submission from the same agent replaces the
// earlier one.
func (c *Coordinator) gatherRound(ctx context.Context, box *inbox, quorum int, timeout time.Duration) (map[string]signal.Signal, bool, error) {
	arrived := make(map[string]signal.Signal)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case sig := <-box.ch:
			arrived[sig.AgentID] = sig
			if len(arrived) >= quorum {
				// Stragglers already buffered still make this round; nobody
				// later than the quorum trigger does.
				return c.drainInto(box, arrived), false, nil
			}
		case <-timer.C:
			return c.drainInto(box, arrived), true, nil
		}
	}
}

func (c *Coordinator) drainInto(box *inbox, arrived map[string]signal.Signal) map[string]signal.Signal {
	for _, sig := range box.drain(nil) {
		arrived[sig.AgentID] = sig
	}
	return arrived
}

func (c *Coordinator) emit(ctx context.Context, d decision.TradingDecision) {
	if c.emitter == nil {
		return
	}
	if err := c.emitter.Emit(ctx, d); err != nil {
		logger.Errorf("coordinator: emit %s %s failed: %v", d.Symbol, d.Timeframe, err)
	}
}

func (c *Coordinator) marketContext(ctx context.Context, pair config.PairConfig) market.Context {
	if c.markets == nil {
		return market.Context{Symbol: pair.Symbol, Timeframe: pair.Timeframe}
	}
	mctx, err := c.markets.Context(ctx, pair.Symbol, pair.Timeframe)
	if err != nil {
		logger.Warnf("coordinator: %s %s market context unavailable, degrading: %v", pair.Symbol, pair.Timeframe, err)
		return market.Context{Symbol: pair.Symbol, Timeframe: pair.Timeframe}
	}
	return mctx
}

func (c *Coordinator) currentPortfolio(ctx context.Context) risk.Portfolio {
	if c.portfolio == nil {
		return risk.Portfolio{}
	}
	p, err := c.portfolio.Portfolio(ctx)
	if err != nil {
		logger.Warnf("coordinator: portfolio unavailable, degrading: %v", err)
		return risk.Portfolio{}
	}
	return p
}

// quorum clamps the configured quorum to the pair's expected agent count.
func (c *Coordinator) quorum(pair config.PairConfig) int {
	q := c.cfg.Quorum
	if q <= 0 {
		q = 2
	}
	if n := len(pair.ExpectedAgents); n > 0 && q > n {
		q = n
	}
	return q
}

func sortedSignals(arrived map[string]signal.Signal) []signal.Signal {
	out := make([]signal.Signal, 0, len(arrived))
	for _, sig := range arrived {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

func missingAgents(expected []string, arrived map[string]signal.Signal) []string {
	var missing []string
	for _, agent := range expected {
		if _, ok := arrived[agent]; !ok {
			missing = append(missing, agent)
		}
	}
	sort.Strings(missing)
	return missing
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "deadline"
	case errors.Is(err, fusion.ErrNonFinite):
		return "non_finite"
	default:
		return "internal"
	}
}

func pairKey(sym, timeframe string) string {
	return symbol.Key(sym, timeframe)
}
