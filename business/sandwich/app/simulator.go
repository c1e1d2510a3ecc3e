package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/cache"
	"github.com/fd1az/sandwich-bot/internal/logger"
	"github.com/fd1az/sandwich-bot/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/sandwich-bot/business/sandwich"
	meterName  = "github.com/fd1az/sandwich-bot/business/sandwich"
)

var _ Simulator = (*TraceSimulator)(nil)

// SimulatorConfig controls simulation pacing.
type SimulatorConfig struct {
	// SimulationsPerSecond caps debug_traceCall throughput; zero is unlimited.
	SimulationsPerSecond float64
	// Timeout bounds nonce lookup plus trace; zero disables it.
	Timeout time.Duration
	// NonceTTL is how long a (sender, block) nonce stays cached.
	NonceTTL time.Duration
}

// DefaultSimulatorConfig returns unlimited throughput with a 5s timeout.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Timeout:  5 * time.Second,
		NonceTTL: 15 * time.Second,
	}
}

type nonceKey struct {
	sender common.Address
	block  uint64
}

type simulatorMetrics struct {
	simulations metric.Int64Counter
	latency     metric.Float64Histogram
	nonceHits   metric.Int64Counter
}

// TraceSimulator replays pending transactions with debug_traceCall against the
// latest confirmed block, using the sender's nonce as of that block.
type TraceSimulator struct {
	reader  ChainReader
	config  SimulatorConfig
	limiter *ratelimit.Limiter
	nonces  *cache.Cache[nonceKey, uint64]
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *simulatorMetrics
}

// NewTraceSimulator creates a simulator on top of reader.
func NewTraceSimulator(reader ChainReader, cfg SimulatorConfig, log logger.LoggerInterface) (*TraceSimulator, error) {
	s := &TraceSimulator{
		reader:  reader,
		config:  cfg,
		limiter: ratelimit.New(cfg.SimulationsPerSecond, 1),
		nonces:  cache.New[nonceKey, uint64](time.Minute),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *TraceSimulator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &simulatorMetrics{}

	s.metrics.simulations, err = meter.Int64Counter(
		"sandwich_simulations_total",
		metric.WithDescription("Pending transaction simulations by outcome"),
		metric.WithUnit("{simulation}"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"sandwich_simulation_latency_ms",
		metric.WithDescription("Nonce lookup plus debug_traceCall latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.nonceHits, err = meter.Int64Counter(
		"sandwich_nonce_cache_hits_total",
		metric.WithDescription("Sender nonces served from cache"),
		metric.WithUnit("{hit}"),
	)
	return err
}

// Simulate returns the call tree of tx executed on top of block. Every failure,
// including a reverted root frame, is an error and means no trace.
func (s *TraceSimulator) Simulate(ctx context.Context, tx *chainDomain.PendingTx, block chainDomain.NewBlock) (*chainDomain.CallFrame, error) {
	ctx, span := s.tracer.Start(ctx, "sandwich.Simulate",
		trace.WithAttributes(
			attribute.String("tx.hash", tx.Hash.Hex()),
			attribute.Int64("block.number", int64(block.Number)),
		))
	defer span.End()

	start := time.Now()
	frame, err := s.simulate(ctx, tx, block)

	outcome := "ok"
	if err != nil {
		outcome = string(apperror.GetCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.simulations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	s.metrics.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	return frame, err
}

func (s *TraceSimulator) simulate(ctx context.Context, tx *chainDomain.PendingTx, block chainDomain.NewBlock) (*chainDomain.CallFrame, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	nonce, err := s.nonceAt(ctx, tx.From, block.Number)
	if err != nil {
		return nil, apperror.New(apperror.CodeSimulationFailed,
			apperror.WithCause(err),
			apperror.WithContext("nonce lookup "+tx.From.Hex()))
	}

	frame, err := s.reader.TraceCall(ctx, tx.WithNonce(nonce), block.Number)
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeSimulationFailed, apperror.WithCause(err))
	}
	if frame == nil {
		return nil, apperror.New(apperror.CodeUnknownTraceFormat,
			apperror.WithContext("empty trace for "+tx.Hash.Hex()))
	}
	if frame.Reverted() {
		reason := frame.Error
		if frame.RevertReason != "" {
			reason += ": " + frame.RevertReason
		}
		return nil, apperror.New(apperror.CodeSimulationReverted, apperror.WithContext(reason))
	}

	return frame, nil
}

func (s *TraceSimulator) nonceAt(ctx context.Context, sender common.Address, block uint64) (uint64, error) {
	key := nonceKey{sender: sender, block: block}
	if n, ok := s.nonces.Get(ctx, key); ok {
		s.metrics.nonceHits.Add(ctx, 1)
		return n, nil
	}

	n, err := s.reader.NonceAt(ctx, sender, block)
	if err != nil {
		return 0, err
	}
	s.nonces.Set(ctx, key, n, s.config.NonceTTL)
	return n, nil
}

// Close stops the nonce cache janitor.
func (s *TraceSimulator) Close() error {
	s.nonces.Close()
	return nil
}
