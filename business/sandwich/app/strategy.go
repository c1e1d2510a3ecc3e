package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	registryDomain "github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/internal/eventbus"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// State is the strategy lifecycle.
type State int32

const (
	StateBootstrapping State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StrategyConfig holds detection loop settings.
type StrategyConfig struct {
	// MaxConcurrentSimulations of 1 handles each pending transaction end to end
	// before reading the next event.
	MaxConcurrentSimulations int
}

// Stats are running totals since the strategy started.
type Stats struct {
	Blocks      uint64
	Pending     uint64
	Failed      uint64
	SwapTxs     uint64
	Swaps       uint64
	Undecodable uint64
	Lagged      uint64
}

type strategyStats struct {
	blocks      atomic.Uint64
	pending     atomic.Uint64
	failed      atomic.Uint64
	swapTxs     atomic.Uint64
	swaps       atomic.Uint64
	undecodable atomic.Uint64
	lagged      atomic.Uint64
}

type strategyMetrics struct {
	events      metric.Int64Counter
	lagged      metric.Int64Counter
	failures    metric.Int64Counter
	swaps       metric.Int64Counter
	undecodable metric.Int64Counter
	handleTime  metric.Float64Histogram
}

// Strategy consumes chain events, simulates every pending transaction against
// the current block context and reports the swaps it would perform on tracked
// main-currency pools.
type Strategy struct {
	config   StrategyConfig
	loader   RegistryLoader
	reader   ChainReader
	events   EventSource
	sim      Simulator
	reporter Reporter
	logger   logger.LoggerInterface

	state     atomic.Int32
	block     atomic.Pointer[chainDomain.NewBlock]
	snapshot  atomic.Pointer[registryDomain.Snapshot]
	extractor *Extractor
	stats     strategyStats

	tracer  trace.Tracer
	metrics *strategyMetrics
}

// NewStrategy creates a Strategy. A nil reporter discards results.
func NewStrategy(
	cfg StrategyConfig,
	loader RegistryLoader,
	reader ChainReader,
	events EventSource,
	sim Simulator,
	reporter Reporter,
	log logger.LoggerInterface,
) (*Strategy, error) {
	if cfg.MaxConcurrentSimulations < 1 {
		cfg.MaxConcurrentSimulations = 1
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	s := &Strategy{
		config:   cfg,
		loader:   loader,
		reader:   reader,
		events:   events,
		sim:      sim,
		reporter: reporter,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	s.state.Store(int32(StateBootstrapping))

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Strategy) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &strategyMetrics{}

	s.metrics.events, err = meter.Int64Counter(
		"sandwich_events_total",
		metric.WithDescription("Bus events consumed by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	s.metrics.lagged, err = meter.Int64Counter(
		"sandwich_events_lagged_total",
		metric.WithDescription("Bus events skipped because the strategy fell behind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	s.metrics.failures, err = meter.Int64Counter(
		"sandwich_pending_discarded_total",
		metric.WithDescription("Pending transactions discarded by reason"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.swaps, err = meter.Int64Counter(
		"sandwich_swaps_detected_total",
		metric.WithDescription("Swaps on tracked pools found in simulated traces"),
		metric.WithUnit("{swap}"),
	)
	if err != nil {
		return err
	}

	s.metrics.undecodable, err = meter.Int64Counter(
		"sandwich_undecodable_swap_logs_total",
		metric.WithDescription("Swap logs on tracked pools whose data did not decode"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	s.metrics.handleTime, err = meter.Float64Histogram(
		"sandwich_pending_handle_latency_ms",
		metric.WithDescription("Time from dequeue to report for one pending transaction"),
		metric.WithUnit("ms"),
	)
	return err
}

// Run bootstraps the registry and block context, then processes events until
// ctx is done (nil) or the bus closes (EVENT_BUS_CLOSED). Bootstrap failures
// are returned as is.
func (s *Strategy) Run(ctx context.Context) error {
	defer s.state.Store(int32(StateStopped))

	sub, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := s.reporter.Start(ctx); err != nil {
		return fmt.Errorf("start reporter: %w", err)
	}
	defer func() {
		if err := s.reporter.Stop(); err != nil {
			s.logger.Warn(context.Background(), "reporter stop failed", "error", err)
		}
	}()

	s.state.Store(int32(StateRunning))
	s.logger.Info(ctx, "strategy running",
		"pools", s.snapshot.Load().PoolCount(),
		"block", s.block.Load().Number,
		"max_concurrent_simulations", s.config.MaxConcurrentSimulations)

	return s.loop(ctx, sub)
}

func (s *Strategy) bootstrap(ctx context.Context) (*eventbus.Subscription[chainDomain.Event], error) {
	s.state.Store(int32(StateBootstrapping))

	snap, err := s.loader.Load(ctx)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeRegistryBootstrapFailed) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeRegistryBootstrapFailed, apperror.WithCause(err))
	}
	s.snapshot.Store(snap)
	s.extractor = NewExtractor(snap)

	latest, err := s.reader.LatestBlock(ctx)
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeBlockNotFound, apperror.WithCause(err))
	}
	nb := chainDomain.NewBlockFrom(latest)
	s.block.Store(&nb)

	s.logger.Info(ctx, "strategy bootstrapped",
		"pools", snap.PoolCount(),
		"main_pools", snap.MainPoolCount(),
		"tokens", snap.TokenCount(),
		"dropped_pools", snap.Dropped(),
		"block", nb.Number,
		"next_base_fee_gwei", chainDomain.Gwei(nb.NextBaseFee).String())

	return s.events.Subscribe(), nil
}

func (s *Strategy) loop(ctx context.Context, sub *eventbus.Subscription[chainDomain.Event]) error {
	var (
		g    *errgroup.Group
		gctx = ctx
	)
	if s.config.MaxConcurrentSimulations > 1 {
		g, gctx = errgroup.WithContext(ctx)
		g.SetLimit(s.config.MaxConcurrentSimulations)
	}
	wait := func() {
		if g != nil {
			_ = g.Wait()
		}
	}

	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			if missed, ok := eventbus.IsLagged(err); ok {
				s.stats.lagged.Add(missed)
				s.metrics.lagged.Add(ctx, int64(missed))
				s.logger.Warn(ctx, "strategy lagged behind event bus", "missed", missed)
				continue
			}
			wait()
			if errors.Is(err, eventbus.ErrClosed) {
				return apperror.New(apperror.CodeEventBusClosed, apperror.WithCause(err))
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch e := ev.(type) {
		case chainDomain.BlockEvent:
			s.metrics.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "block")))
			s.onBlock(ctx, e.Block)

		case chainDomain.PendingTxEvent:
			s.metrics.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "pending_tx")))
			if e.Tx == nil {
				continue
			}
			block := *s.block.Load()
			if g == nil {
				s.handlePending(ctx, e.Tx, block)
				continue
			}
			tx := e.Tx
			g.Go(func() error {
				s.handlePending(gctx, tx, block)
				return nil
			})
		}
	}
}

func (s *Strategy) onBlock(ctx context.Context, block chainDomain.NewBlock) {
	s.block.Store(&block)
	s.stats.blocks.Add(1)
	s.logger.Debug(ctx, "block context updated",
		"block", block.Number,
		"base_fee_gwei", chainDomain.Gwei(block.BaseFee).String(),
		"next_base_fee_gwei", chainDomain.Gwei(block.NextBaseFee).String())
	s.reporter.ReportBlock(ctx, block)
}

// handlePending never fails the loop: every problem discards the transaction.
func (s *Strategy) handlePending(ctx context.Context, tx *chainDomain.PendingTx, block chainDomain.NewBlock) {
	ctx, span := s.tracer.Start(ctx, "sandwich.HandlePending",
		trace.WithAttributes(attribute.String("tx.hash", tx.Hash.Hex())))
	defer span.End()

	start := time.Now()
	s.stats.pending.Add(1)

	frame, err := s.sim.Simulate(ctx, tx, block)
	if err != nil {
		s.stats.failed.Add(1)
		s.discard(ctx, tx, err)
		return
	}
	simTime := time.Since(start)

	extraction, err := s.extractor.Extract(frame, tx)
	if err != nil {
		s.logger.Warn(ctx, "trace truncated", "tx", tx.Hash.Hex(), "error", err)
	}

	for _, u := range extraction.Undecodable {
		s.stats.undecodable.Add(1)
		s.metrics.undecodable.Add(ctx, 1)
		s.logger.Warn(ctx, "undecodable swap log",
			"tx", tx.Hash.Hex(),
			"pool", u.Pool.Hex(),
			"log_index", u.LogIndex,
			"error", u.Err)
	}

	if len(extraction.Swaps) == 0 {
		s.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "no_swaps")))
		return
	}

	info := &domain.PendingTxInfo{
		PendingTx:      tx,
		BlockNumber:    block.Number,
		TouchedPairs:   extraction.Swaps,
		DetectedAt:     time.Now(),
		SimulationTime: simTime,
	}

	s.stats.swapTxs.Add(1)
	s.stats.swaps.Add(uint64(len(info.TouchedPairs)))
	for _, swap := range info.TouchedPairs {
		s.metrics.swaps.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", swap.Direction.String())))
		s.logger.Info(ctx, "swap detected",
			"tx", tx.Hash.Hex(),
			"block", block.Number,
			"pair", swap.TargetPair.Hex(),
			"direction", swap.Direction.String(),
			"target_token", swap.TargetToken.Hex(),
			"target_symbol", swap.TargetSymbol(),
			"main_amount", asset.FormatRaw(swap.MainAsset, swap.MainAmount(), 6),
			"target_amount", asset.FormatRaw(swap.TargetAsset, swap.TargetAmount(), 6),
			"log_index", swap.LogIndex)
	}

	s.reporter.ReportSwaps(ctx, info)
	s.metrics.handleTime.Record(ctx, float64(time.Since(start).Microseconds())/1000)
}

func (s *Strategy) discard(ctx context.Context, tx *chainDomain.PendingTx, err error) {
	reason := string(apperror.GetCode(err))
	if ctx.Err() != nil {
		reason = "canceled"
	}
	s.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	s.logger.Debug(ctx, "pending transaction discarded",
		"tx", tx.Hash.Hex(),
		"reason", reason,
		"error", err)
}

// State returns the lifecycle state.
func (s *Strategy) State() State {
	return State(s.state.Load())
}

// BlockContext returns the block pending transactions are simulated against.
func (s *Strategy) BlockContext() (chainDomain.NewBlock, bool) {
	b := s.block.Load()
	if b == nil {
		return chainDomain.NewBlock{}, false
	}
	return *b, true
}

// Snapshot returns the registry loaded at bootstrap, nil before.
func (s *Strategy) Snapshot() *registryDomain.Snapshot {
	return s.snapshot.Load()
}

// Stats returns running totals.
func (s *Strategy) Stats() Stats {
	return Stats{
		Blocks:      s.stats.blocks.Load(),
		Pending:     s.stats.pending.Load(),
		Failed:      s.stats.failed.Load(),
		SwapTxs:     s.stats.swapTxs.Load(),
		Swaps:       s.stats.swaps.Load(),
		Undecodable: s.stats.undecodable.Load(),
		Lagged:      s.stats.lagged.Load(),
	}
}

type nopReporter struct{}

func (nopReporter) Start(context.Context) error                        { return nil }
func (nopReporter) ReportBlock(context.Context, chainDomain.NewBlock)  {}
func (nopReporter) ReportSwaps(context.Context, *domain.PendingTxInfo) {}
func (nopReporter) Stop() error                                        { return nil }
