package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/sandwich-bot/business/registry/app"
	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/circuitbreaker"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

var _ app.PairSource = (*PairScanner)(nil)

// LogFilterer is the subset of ethclient.Client the scanner needs.
type LogFilterer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type scannerMetrics struct {
	rangesScanned metric.Int64Counter
	rangesSplit   metric.Int64Counter
	pairsFound    metric.Int64Counter
	scanLatency   metric.Float64Histogram
}

// PairScanner reads PairCreated events from a Uniswap V2 style factory.
// Ranges the node refuses (result-size limits) are bisected down to a single block.
type PairScanner struct {
	client  LogFilterer
	factory common.Address
	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]types.Log]

	tracer  trace.Tracer
	metrics *scannerMetrics
}

// NewPairScanner creates a scanner for factory.
func NewPairScanner(client LogFilterer, factory common.Address, log logger.LoggerInterface) (*PairScanner, error) {
	s := &PairScanner{
		client:  client,
		factory: factory,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("registry-pair-scan")
	cbCfg.IsSuccessful = func(err error) bool {
		var rpcErr rpc.Error
		return err == nil || errors.As(err, &rpcErr)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.cb = circuitbreaker.New[[]types.Log](cbCfg)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *PairScanner) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &scannerMetrics{}

	s.metrics.rangesScanned, err = meter.Int64Counter(
		"registry_scan_ranges_total",
		metric.WithDescription("eth_getLogs ranges scanned for PairCreated"),
		metric.WithUnit("{range}"),
	)
	if err != nil {
		return err
	}

	s.metrics.rangesSplit, err = meter.Int64Counter(
		"registry_scan_ranges_split_total",
		metric.WithDescription("Ranges bisected after the node rejected them"),
		metric.WithUnit("{range}"),
	)
	if err != nil {
		return err
	}

	s.metrics.pairsFound, err = meter.Int64Counter(
		"registry_pairs_found_total",
		metric.WithDescription("PairCreated events decoded"),
		metric.WithUnit("{pair}"),
	)
	if err != nil {
		return err
	}

	s.metrics.scanLatency, err = meter.Float64Histogram(
		"registry_scan_latency_ms",
		metric.WithDescription("eth_getLogs latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// HeadBlock returns the current chain head.
func (s *PairScanner) HeadBlock(ctx context.Context) (uint64, error) {
	n, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err), apperror.WithContext("eth_blockNumber"))
	}
	return n, nil
}

// ScanPairs returns the pools created in [from, to].
func (s *PairScanner) ScanPairs(ctx context.Context, from, to uint64) ([]domain.Pool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.scan_pairs",
		trace.WithAttributes(
			attribute.Int64("from", int64(from)),
			attribute.Int64("to", int64(to)),
		),
	)
	defer span.End()

	pools, err := s.scan(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("pairs", len(pools)))
	s.metrics.pairsFound.Add(ctx, int64(len(pools)))
	return pools, nil
}

func (s *PairScanner) scan(ctx context.Context, from, to uint64) ([]domain.Pool, error) {
	start := time.Now()
	logs, err := s.cb.Execute(func() ([]types.Log, error) {
		return s.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{s.factory},
			Topics:    [][]common.Hash{{PairCreatedTopic}},
		})
	})
	s.metrics.rangesScanned.Add(ctx, 1)
	s.metrics.scanLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && to > from && ctx.Err() == nil {
			mid := from + (to-from)/2
			s.metrics.rangesSplit.Add(ctx, 1)
			s.logger.Debug(ctx, "splitting log range", "from", from, "to", to, "error", err)

			left, err := s.scan(ctx, from, mid)
			if err != nil {
				return nil, err
			}
			right, err := s.scan(ctx, mid+1, to)
			if err != nil {
				return nil, err
			}
			return append(left, right...), nil
		}
		return nil, err
	}

	pools := make([]domain.Pool, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		p, err := DecodePairCreated(lg)
		if err != nil {
			s.logger.Warn(ctx, "skipping malformed PairCreated log",
				"tx", lg.TxHash.Hex(), "index", lg.Index, "error", err)
			continue
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// DecodePairCreated turns a PairCreated log into a V2 pool.
func DecodePairCreated(lg types.Log) (domain.Pool, error) {
	if len(lg.Topics) != 3 || lg.Topics[0] != PairCreatedTopic {
		return domain.Pool{}, fmt.Errorf("not a PairCreated log")
	}

	values, err := factoryABI.Unpack("PairCreated", lg.Data)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("unpack PairCreated: %w", err)
	}
	pair, ok := values[0].(common.Address)
	if !ok {
		return domain.Pool{}, fmt.Errorf("unexpected pair type %T", values[0])
	}

	return domain.Pool{
		Address:      pair,
		Token0:       common.BytesToAddress(lg.Topics[1].Bytes()),
		Token1:       common.BytesToAddress(lg.Topics[2].Bytes()),
		Version:      domain.VersionV2,
		CreatedBlock: lg.BlockNumber,
	}, nil
}
