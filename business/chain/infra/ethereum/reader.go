package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"github.com/sugawarayuuta/sonnet"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/cache"
	"github.com/fd1az/sandwich-bot/internal/circuitbreaker"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// ReaderConfig holds configuration for the chain reader.
type ReaderConfig struct {
	RequestTimeout time.Duration // per-call deadline
	HeaderCacheTTL time.Duration // how long fetched headers are kept
}

// DefaultReaderConfig returns sensible defaults.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		RequestTimeout: 10 * time.Second,
		HeaderCacheTTL: 2 * time.Minute,
	}
}

type readerMetrics struct {
	rpcCalls     metric.Int64Counter
	rpcLatency   metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	traceFormats metric.Int64Counter
}

// Reader implements app.ChainReader over an HTTP JSON-RPC client. The node
// must expose debug_traceCall.
type Reader struct {
	config ReaderConfig
	logger logger.LoggerInterface

	rpc *rpc.Client
	eth *ethclient.Client

	headers *cache.Cache[uint64, *domain.Block]

	headerCB *circuitbreaker.CircuitBreaker[*types.Header]
	nonceCB  *circuitbreaker.CircuitBreaker[uint64]
	traceCB  *circuitbreaker.CircuitBreaker[json.RawMessage]

	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewReader creates a chain reader on top of client.
func NewReader(client *rpc.Client, cfg ReaderConfig, log logger.LoggerInterface) (*Reader, error) {
	r := &Reader{
		config:  cfg,
		logger:  log,
		rpc:     client,
		eth:     ethclient.NewClient(client),
		headers: cache.New[uint64, *domain.Block](time.Minute),
		tracer:  otel.Tracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	r.headerCB = circuitbreaker.New[*types.Header](r.breakerConfig("eth-reader-headers"))
	r.nonceCB = circuitbreaker.New[uint64](r.breakerConfig("eth-reader-nonce"))
	r.traceCB = circuitbreaker.New[json.RawMessage](r.breakerConfig("eth-reader-trace"))

	return r, nil
}

func (r *Reader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &readerMetrics{}

	r.metrics.rpcCalls, err = meter.Int64Counter(
		"eth_reader_rpc_calls_total",
		metric.WithDescription("JSON-RPC calls issued by the chain reader"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	r.metrics.rpcLatency, err = meter.Float64Histogram(
		"eth_reader_rpc_latency_ms",
		metric.WithDescription("JSON-RPC call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	r.metrics.cacheHits, err = meter.Int64Counter(
		"eth_reader_header_cache_hits_total",
		metric.WithDescription("Header lookups served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	r.metrics.cacheMisses, err = meter.Int64Counter(
		"eth_reader_header_cache_misses_total",
		metric.WithDescription("Header lookups that went to the node"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	r.metrics.traceFormats, err = meter.Int64Counter(
		"eth_reader_unknown_trace_total",
		metric.WithDescription("debug_traceCall results that did not decode as a call frame"),
		metric.WithUnit("{trace}"),
	)
	return err
}

// breakerConfig counts only transport failures. A JSON-RPC error means the
// node answered, e.g. a transaction it refuses to execute.
func (r *Reader) breakerConfig(name string) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.IsSuccessful = func(err error) bool {
		var rpcErr rpc.Error
		return err == nil || errors.As(err, &rpcErr)
	}
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		r.logger.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	return cfg
}

// LatestBlock fetches the chain head.
func (r *Reader) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := r.tracer.Start(ctx, "eth.reader.latest_block")
	defer span.End()

	header, err := r.header(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext("latest"))
	}

	b := domain.BlockFromHeader(header)
	r.headers.Set(ctx, b.Number, b, r.config.HeaderCacheTTL)
	span.SetAttributes(attribute.Int64("block_number", int64(b.Number)))
	return b, nil
}

// BlockByNumber fetches a header, served from cache when recently seen.
func (r *Reader) BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error) {
	ctx, span := r.tracer.Start(ctx, "eth.reader.block_by_number",
		trace.WithAttributes(attribute.Int64("block_number", int64(number))))
	defer span.End()

	if b, ok := r.headers.Get(ctx, number); ok {
		r.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return b, nil
	}
	r.metrics.cacheMisses.Add(ctx, 1)

	header, err := r.header(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("block %d", number)))
	}

	b := domain.BlockFromHeader(header)
	r.headers.Set(ctx, number, b, r.config.HeaderCacheTTL)
	return b, nil
}

func (r *Reader) header(ctx context.Context, number *big.Int) (*types.Header, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	defer r.observe(ctx, "eth_getBlockByNumber", time.Now())
	return r.headerCB.Execute(func() (*types.Header, error) {
		return r.eth.HeaderByNumber(ctx, number)
	})
}

// NonceAt returns the account's transaction count as of block.
func (r *Reader) NonceAt(ctx context.Context, account common.Address, block uint64) (uint64, error) {
	ctx, span := r.tracer.Start(ctx, "eth.reader.nonce_at",
		trace.WithAttributes(
			attribute.String("account", account.Hex()),
			attribute.Int64("block_number", int64(block)),
		))
	defer span.End()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	defer r.observe(ctx, "eth_getTransactionCount", time.Now())
	nonce, err := r.nonceCB.Execute(func() (uint64, error) {
		return r.eth.NonceAt(ctx, account, new(big.Int).SetUint64(block))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nonce failed")
		return 0, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_getTransactionCount "+account.Hex()))
	}
	return nonce, nil
}

// traceCallArgs is the call object accepted by debug_traceCall.
type traceCallArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
}

type tracerConfig struct {
	Tracer       string            `json:"tracer"`
	TracerConfig callTracerOptions `json:"tracerConfig"`
}

type callTracerOptions struct {
	WithLog bool `json:"withLog"`
}

var callTracerWithLogs = tracerConfig{
	Tracer:       "callTracer",
	TracerConfig: callTracerOptions{WithLog: true},
}

func newTraceCallArgs(tx *domain.PendingTx) traceCallArgs {
	args := traceCallArgs{
		From:  tx.From,
		To:    tx.To,
		Gas:   hexutil.Uint64(tx.Gas),
		Nonce: hexutil.Uint64(tx.Nonce),
		Data:  tx.Data,
	}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	if tx.IsDynamicFee() {
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap)
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap)
	} else if tx.GasPrice != nil {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice)
	}
	return args
}

// TraceCall runs debug_traceCall for tx at block with the call tracer and logs.
func (r *Reader) TraceCall(ctx context.Context, tx *domain.PendingTx, block uint64) (*domain.CallFrame, error) {
	ctx, span := r.tracer.Start(ctx, "eth.reader.trace_call",
		trace.WithAttributes(
			attribute.String("tx_hash", tx.Hash.Hex()),
			attribute.Int64("block_number", int64(block)),
		))
	defer span.End()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	raw, err := r.traceCB.Execute(func() (json.RawMessage, error) {
		var raw json.RawMessage
		err := r.rpc.CallContext(ctx, &raw, "debug_traceCall",
			newTraceCallArgs(tx), hexutil.EncodeUint64(block), callTracerWithLogs)
		return raw, err
	})
	r.observe(ctx, "debug_traceCall", start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "trace failed")
		return nil, apperror.New(apperror.CodeSimulationFailed,
			apperror.WithCause(err),
			apperror.WithContext("debug_traceCall "+tx.Hash.Hex()))
	}

	frame, err := DecodeCallFrame(raw)
	if err != nil {
		r.metrics.traceFormats.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown trace format")
		return nil, err
	}

	span.SetStatus(codes.Ok, "traced")
	return frame, nil
}

// DecodeCallFrame parses a callTracer result.
func DecodeCallFrame(raw []byte) (*domain.CallFrame, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, apperror.New(apperror.CodeUnknownTraceFormat,
			apperror.WithContext("empty trace result"))
	}

	var frame domain.CallFrame
	if err := sonnet.Unmarshal(raw, &frame); err != nil {
		return nil, apperror.New(apperror.CodeUnknownTraceFormat, apperror.WithCause(err))
	}
	if frame.Type == "" {
		return nil, apperror.New(apperror.CodeUnknownTraceFormat,
			apperror.WithContext("result is not a call frame"))
	}
	return &frame, nil
}

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.RequestTimeout)
}

func (r *Reader) observe(ctx context.Context, method string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("method", method))
	r.metrics.rpcCalls.Add(ctx, 1, attrs)
	r.metrics.rpcLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}

// Close stops the header cache. The RPC client is owned by the caller.
func (r *Reader) Close() error {
	r.headers.Close()
	return nil
}
