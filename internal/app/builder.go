package app

import (
	"context"
	"fmt"

	"fusor/internal/config"
	"fusor/internal/conflict"
	"fusor/internal/decision"
	"fusor/internal/fusion"
	"fusor/internal/logger"
	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/pipeline"
	"fusor/internal/risk"
	"fusor/internal/signal"
	"fusor/internal/sizing"
	"fusor/internal/store/decisionlog"
	apihttp "fusor/internal/transport/http"
	"fusor/internal/weights"
)

// AppBuilder constructs the component graph. The function fields exist so
// tests can substitute stores and servers without touching the wiring.
type AppBuilder struct {
	cfg *config.Config

	weightsFn func(config.AppConfig, *config.Config) *weights.Registry
	storeFn   func(config.StoreConfig) (*decisionlog.Store, error)
	httpFn    func(apihttp.ServerConfig) (*apihttp.Server, error)

	emitterOverride pipeline.Emitter
}

type AppBuilderOption func(*AppBuilder)

// WithEmitter replaces the decision-log emitter, used by replay harnesses
// to capture decisions in memory.
func WithEmitter(e pipeline.Emitter) AppBuilderOption {
	return func(b *AppBuilder) { b.emitterOverride = e }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		weightsFn: buildWeightsRegistry,
		storeFn:   buildDecisionLog,
		httpFn:    apihttp.NewServer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build wires every component and returns the ready-to-run App.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	registry := b.weightsFn(cfg.App, cfg)
	tracker := performance.NewTracker()

	engine, err := fusion.NewEngine(cfg.Fusion)
	if err != nil {
		return nil, fmt.Errorf("fusion engine: %w", err)
	}

	stages := pipeline.Stages{
		Normalizer: signal.NewNormalizer(cfg.Pipeline.Staleness()),
		Engine:     engine,
		Detector:   conflict.NewDetector(analyzerWeightsFn(registry, cfg), cfg.Pipeline.Staleness()),
		Resolver:   conflict.NewResolver(cfg.Conflict),
		Assessor:   risk.NewAssessor(cfg.Risk),
		Stops:      sizing.NewStopTakeCalculator(cfg.Stops),
		Sizer:      sizing.NewSizer(cfg.Sizing, methodWeightsFn(registry, cfg)),
		Assembler:  decision.NewAssembler(),
		Tracker:    tracker,
	}

	store, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}

	emitter := b.emitterOverride
	if emitter == nil {
		emitter = &logEmitter{store: store}
	}

	marketCache := market.NewCache()
	account := risk.NewAccountState()
	coordinator := pipeline.NewCoordinator(cfg.Pipeline, stages, emitter, marketCache, account)

	httpServer, err := b.httpFn(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Submitter: coordinator,
		Decisions: store,
		Market:    marketCache,
		Account:   account,
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:         cfg,
		coordinator: coordinator,
		httpServer:  httpServer,
		decisions:   store,
	}, nil
}

func buildWeightsRegistry(appCfg config.AppConfig, cfg *config.Config) *weights.Registry {
	registry, err := weights.NewRegistry(appCfg.WeightsPath)
	if err != nil {
		logger.Warnf("app: weights file %s unavailable, using configured weights: %v", appCfg.WeightsPath, err)
		return weights.Static(cfg.Conflict.AnalyzerWeights, cfg.Sizing.MethodWeights)
	}
	registry.OnChange(func(snap weights.Snapshot) {
		logger.Infof("app: weights reloaded version=%d analyzers=%d methods=%d",
			snap.Version, len(snap.Analyzers), len(snap.SizingMethods))
	})
	return registry
}

func buildDecisionLog(cfg config.StoreConfig) (*decisionlog.Store, error) {
	return decisionlog.New(cfg.DecisionLogPath)
}

// analyzerWeightsFn prefers the hot-reloadable registry, falling back to
// the static configuration when the file carries no analyzer table.
func analyzerWeightsFn(registry *weights.Registry, cfg *config.Config) conflict.WeightsFn {
	return func() map[string]float64 {
		if snap := registry.Snapshot(); len(snap.Analyzers) > 0 {
			return snap.Analyzers
		}
		return cfg.Conflict.AnalyzerWeights
	}
}

func methodWeightsFn(registry *weights.Registry, cfg *config.Config) sizing.MethodWeightsFn {
	return func() map[string]float64 {
		if snap := registry.Snapshot(); len(snap.SizingMethods) > 0 {
			return snap.SizingMethods
		}
		return cfg.Sizing.MethodWeights
	}
}
