package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"fusor/internal/config"
	"fusor/internal/conflict"
	"fusor/internal/decision"
	"fusor/internal/fusion"
	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/risk"
	"fusor/internal/signal"
	"fusor/internal/sizing"

	"github.com/stretchr/testify/assert"
)

type captureEmitter struct {
	mu   sync.Mutex
	all  []decision.TradingDecision
	next chan decision.TradingDecision
}

func newCaptureEmitter() *captureEmitter {
	return &captureEmitter{next: make(chan decision.TradingDecision, 16)}
}

func (e *captureEmitter) Emit(_ context.Context, d decision.TradingDecision) error {
	e.mu.Lock()
	e.all = append(e.all, d)
	e.mu.Unlock()
	select {
	case e.next <- d:
	default:
	}
	return nil
}

func (e *captureEmitter) await(t *testing.T) decision.TradingDecision {
	t.Helper()
	select {
	case d := <-e.next:
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("no decision emitted in time")
		return decision.TradingDecision{}
	}
}

type stubMarket struct{ mctx market.Context }

func (s stubMarket) Context(context.Context, string, string) (market.Context, error) {
	return s.mctx, nil
}

type stubPortfolio struct{ p risk.Portfolio }

func (s stubPortfolio) Portfolio(context.Context) (risk.Portfolio, error) {
	return s.p, nil
}

func testStages() Stages {
	engine, _ := fusion.NewEngine(config.FusionConfig{})
	return Stages{
		Normalizer: signal.NewNormalizer(90 * time.Second),
		Engine:     engine,
		Detector:   conflict.NewDetector(nil, 90*time.Second),
		Resolver:   conflict.NewResolver(config.ConflictConfig{}),
		Assessor:   risk.NewAssessor(config.RiskConfig{}),
		Stops:      sizing.NewStopTakeCalculator(config.StopsConfig{}),
		Sizer:      sizing.NewSizer(config.SizingConfig{}, nil),
		Assembler:  decision.NewAssembler(),
		Tracker:    performance.NewTracker(),
	}
}

func testPipelineConfig(timeoutMS int) config.PipelineConfig {
	return config.PipelineConfig{
		Quorum:         2,
		CycleTimeoutMS: timeoutMS,
		InboxCapacity:  16,
		Pairs: []config.PairConfig{
			{Symbol: "BTCUSDT", Timeframe: "1h", ExpectedAgents: []string{"a1", "a2", "a3"}},
		},
	}
}

func testSignal(agent string, dir signal.Direction, conf float64) signal.Signal {
	return signal.Signal{
		AgentID:     agent,
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		Direction:   dir,
		Confidence:  conf,
		SubmittedAt: time.Now().UTC(),
	}
}

func healthyMarket() market.Context {
	return market.Context{
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		LastPrice:   50_000,
		RealizedVol: 0.02,
		ATR:         500,
	}
}

func startCoordinator(t *testing.T, cfg config.PipelineConfig, emitter Emitter) (*Coordinator, context.CancelFunc) {
	t.Helper()
	c := NewCoordinator(cfg, testStages(), emitter,
		stubMarket{mctx: healthyMarket()},
		stubPortfolio{p: risk.Portfolio{EquityUSD: 100_000}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
	return c, cancel
}

func TestCoordinatorQuorumTriggersDecision(t *testing.T) {
	emitter := newCaptureEmitter()
	c, _ := startCoordinator(t, testPipelineConfig(5000), emitter)

	assert.NoError(t, c.Submit(testSignal("a1", signal.DirectionLong, 0.8)))
	assert.NoError(t, c.Submit(testSignal("a2", signal.DirectionLong, 0.7)))

	d := emitter.await(t)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.True(t, d.QuorumMet)
	assert.Equal(t, []string{"a3"}, d.Abstentions)
	assert.True(t, d.Class == decision.ClassBuy || d.Class == decision.ClassStrongBuy)
	assert.Greater(t, d.PositionSize, 0.0)
	assert.Greater(t, d.StopLoss, 0.0)
}

func TestCoordinatorTimeoutWithoutSignalsEmitsHold(t *testing.T) {
	emitter := newCaptureEmitter()
	startCoordinator(t, testPipelineConfig(100), emitter)

	d := emitter.await(t)
	assert.Equal(t, decision.ClassHold, d.Class)
	assert.Zero(t, d.Confidence)
	assert.False(t, d.QuorumMet)
	assert.Equal(t, []string{"a1", "a2", "a3"}, d.Abstentions)
	assert.Zero(t, d.PositionSize)
}

func TestCoordinatorPartialQuorumOnTimeout(t *testing.T) {
	emitter := newCaptureEmitter()
	c, _ := startCoordinator(t, testPipelineConfig(200), emitter)

	assert.NoError(t, c.Submit(testSignal("a1", signal.DirectionLong, 0.8)))

	d := emitter.await(t)
	assert.False(t, d.QuorumMet)
	assert.ElementsMatch(t, []string{"a2", "a3"}, d.Abstentions)
	// Single surviving signal still produces a directional call.
	assert.NotEqual(t, "", string(d.Class))
}

func TestCoordinatorSupersedesChain(t *testing.T) {
	emitter := newCaptureEmitter()
	c, _ := startCoordinator(t, testPipelineConfig(5000), emitter)

	c.Submit(testSignal("a1", signal.DirectionLong, 0.8))
	c.Submit(testSignal("a2", signal.DirectionLong, 0.7))
	first := emitter.await(t)

	c.Submit(testSignal("a1", signal.DirectionShort, 0.8))
	c.Submit(testSignal("a2", signal.DirectionShort, 0.7))
	second := emitter.await(t)

	assert.Empty(t, first.SupersedesID)
	assert.Equal(t, first.ID, second.SupersedesID)
	assert.True(t, second.Timestamp.After(first.Timestamp) || second.Timestamp.Equal(first.Timestamp))
}

func TestCoordinatorRejectsUnknownPair(t *testing.T) {
	emitter := newCaptureEmitter()
	c, _ := startCoordinator(t, testPipelineConfig(5000), emitter)

	sig := testSignal("a1", signal.DirectionLong, 0.8)
	sig.Symbol = "DOGEUSDT"
	assert.ErrorIs(t, c.Submit(sig), ErrUnknownPair)
}

func TestCoordinatorLatestSubmissionWins(t *testing.T) {
	emitter := newCaptureEmitter()
	c, _ := startCoordinator(t, testPipelineConfig(300), emitter)

	// Same agent revises its call; only the second copy should count, so no
	// quorum is reached and the round times out with one signal.
	c.Submit(testSignal("a1", signal.DirectionLong, 0.4))
	c.Submit(testSignal("a1", signal.DirectionLong, 0.9))

	d := emitter.await(t)
	assert.False(t, d.QuorumMet)
}

func TestInboxOverflowDropsSignal(t *testing.T) {
	box := newInbox("BTCUSDT", "1h", 2)
	assert.True(t, box.Offer(testSignal("a1", signal.DirectionLong, 0.5)))
	assert.True(t, box.Offer(testSignal("a2", signal.DirectionLong, 0.5)))
	assert.False(t, box.Offer(testSignal("a3", signal.DirectionLong, 0.5)))

	drained := box.drain(nil)
	assert.Len(t, drained, 2)
}
