package ethereum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/sandwich-bot/business/registry/app"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/internal/circuitbreaker"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

var _ app.TokenSource = (*TokenFetcher)(nil)

// ContractCaller is the subset of ethclient.Client the fetcher needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type tokenMetrics struct {
	fetches  metric.Int64Counter
	failures metric.Int64Counter
	bytes32  metric.Int64Counter
}

// TokenFetcher reads ERC20 name, symbol and decimals with eth_call.
type TokenFetcher struct {
	client  ContractCaller
	chainID uint64
	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *tokenMetrics
}

// NewTokenFetcher creates a metadata fetcher for chainID.
func NewTokenFetcher(client ContractCaller, chainID uint64, log logger.LoggerInterface) (*TokenFetcher, error) {
	f := &TokenFetcher{
		client:  client,
		chainID: chainID,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	// Reverting calls are answers about the token, not node failures.
	cbCfg := circuitbreaker.DefaultConfig("registry-token-metadata")
	cbCfg.ConsecutiveFailures = 20
	cbCfg.IsSuccessful = func(err error) bool {
		var rpcErr rpc.Error
		return err == nil || errors.As(err, &rpcErr)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	f.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return f, nil
}

func (f *TokenFetcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &tokenMetrics{}

	f.metrics.fetches, err = meter.Int64Counter(
		"registry_token_fetches_total",
		metric.WithDescription("ERC20 metadata lookups"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return err
	}

	f.metrics.failures, err = meter.Int64Counter(
		"registry_token_fetch_failures_total",
		metric.WithDescription("Tokens whose metadata could not be resolved"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return err
	}

	f.metrics.bytes32, err = meter.Int64Counter(
		"registry_token_bytes32_total",
		metric.WithDescription("Tokens that needed the bytes32 metadata fallback"),
		metric.WithUnit("{token}"),
	)
	return err
}

// FetchToken resolves the metadata of the token at addr. symbol and decimals
// are required; a missing name falls back to the symbol.
func (f *TokenFetcher) FetchToken(ctx context.Context, addr common.Address) (*asset.Asset, error) {
	ctx, span := f.tracer.Start(ctx, "registry.fetch_token",
		trace.WithAttributes(attribute.String("token", addr.Hex())),
	)
	defer span.End()

	f.metrics.fetches.Add(ctx, 1)

	a, err := f.fetch(ctx, addr)
	if err != nil {
		f.metrics.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata unavailable")
		return nil, apperror.New(apperror.CodeTokenMetadataUnavailable,
			apperror.WithCause(err), apperror.WithContext(addr.Hex()))
	}

	span.SetAttributes(attribute.String("symbol", a.Symbol()), attribute.Int("decimals", int(a.Decimals())))
	return a, nil
}

func (f *TokenFetcher) fetch(ctx context.Context, addr common.Address) (*asset.Asset, error) {
	raw, err := f.call(ctx, addr, "decimals")
	if err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	out, err := erc20ABI.Unpack("decimals", raw)
	if err != nil {
		return nil, fmt.Errorf("decode decimals: %w", err)
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("decode decimals: unexpected %T", out[0])
	}

	symbol, err := f.text(ctx, addr, "symbol")
	if err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}

	name, err := f.text(ctx, addr, "name")
	if err != nil {
		f.logger.Debug(ctx, "token has no name", "token", addr.Hex(), "error", err)
		name = ""
	}

	return asset.NewToken(f.chainID, addr, symbol, name, decimals)
}

// text reads a string getter, falling back to the bytes32 encoding.
func (f *TokenFetcher) text(ctx context.Context, addr common.Address, method string) (string, error) {
	raw, err := f.call(ctx, addr, method)
	if err != nil {
		return "", err
	}

	if out, err := erc20ABI.Unpack(method, raw); err == nil {
		if s, ok := out[0].(string); ok {
			return sanitize(s), nil
		}
	}

	out, err := erc20Bytes32ABI.Unpack(method, raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", method, err)
	}
	b, ok := out[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("decode %s: unexpected %T", method, out[0])
	}
	f.metrics.bytes32.Add(ctx, 1)
	return sanitize(string(bytes.TrimRight(b[:], "\x00"))), nil
}

func (f *TokenFetcher) call(ctx context.Context, addr common.Address, method string) ([]byte, error) {
	data, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, err
	}
	raw, err := f.cb.Execute(func() ([]byte, error) {
		return f.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty result (no code or no %s)", method)
	}
	return raw, nil
}

// sanitize drops invalid UTF-8 and control characters some tokens embed.
func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
