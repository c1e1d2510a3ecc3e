package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/cache"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// PendingConfig holds configuration for the mempool subscriber.
type PendingConfig struct {
	WSURL          string
	ChainID        *big.Int
	BufferSize     int
	DedupTTL       time.Duration
	LookupTimeout  time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPendingConfig returns sensible defaults.
func DefaultPendingConfig(wsURL string, chainID uint64) PendingConfig {
	return PendingConfig{
		WSURL:          wsURL,
		ChainID:        new(big.Int).SetUint64(chainID),
		BufferSize:     4096,
		DedupTTL:       2 * time.Minute,
		LookupTimeout:  3 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

type pendingMetrics struct {
	received     metric.Int64Counter
	dropped      metric.Int64Counter
	duplicates   metric.Int64Counter
	lookupErrors metric.Int64Counter
}

// PendingSubscriber streams mempool transactions with their recovered sender.
// It prefers full-transaction notifications and falls back to hash
// notifications plus eth_getTransactionByHash on nodes that lack them.
type PendingSubscriber struct {
	config PendingConfig
	logger logger.LoggerInterface
	signer types.Signer

	rpcClient *rpc.Client
	clientMu  sync.Mutex

	seen  *cache.Cache[common.Hash, struct{}]
	out   chan *domain.PendingTx
	state atomic.Value // domain.ConnectionState
	once  sync.Once

	tracer  trace.Tracer
	metrics *pendingMetrics
}

// NewPendingSubscriber creates a mempool subscriber.
func NewPendingSubscriber(cfg PendingConfig, log logger.LoggerInterface) (*PendingSubscriber, error) {
	if cfg.ChainID == nil {
		return nil, errors.New("chain id is required for sender recovery")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}

	s := &PendingSubscriber{
		config: cfg,
		logger: log,
		signer: types.LatestSignerForChainID(cfg.ChainID),
		seen:   cache.New[common.Hash, struct{}](cfg.DedupTTL),
		out:    make(chan *domain.PendingTx, cfg.BufferSize),
		tracer: otel.Tracer(tracerName),
	}
	s.state.Store(domain.StateDisconnected)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *PendingSubscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &pendingMetrics{}

	s.metrics.received, err = meter.Int64Counter(
		"eth_pending_txs_received_total",
		metric.WithDescription("Pending transactions received from the mempool stream"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.dropped, err = meter.Int64Counter(
		"eth_pending_txs_dropped_total",
		metric.WithDescription("Pending transactions dropped because the buffer was full"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.duplicates, err = meter.Int64Counter(
		"eth_pending_txs_duplicate_total",
		metric.WithDescription("Pending transactions seen more than once"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.lookupErrors, err = meter.Int64Counter(
		"eth_pending_tx_lookup_errors_total",
		metric.WithDescription("Failures resolving a pending hash or its sender"),
		metric.WithUnit("{error}"),
	)
	return err
}

// Subscribe connects and starts streaming. The stream reconnects on its own
// until ctx is done.
func (s *PendingSubscriber) Subscribe(ctx context.Context) (<-chan *domain.PendingTx, error) {
	dialCtx, span := s.tracer.Start(ctx, "eth.pending.subscribe")
	defer span.End()

	s.state.Store(domain.StateConnecting)
	if err := s.dial(dialCtx); err != nil {
		span.RecordError(err)
		s.state.Store(domain.StateDisconnected)
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("mempool websocket"))
	}

	s.once.Do(func() { go s.run(ctx) })
	return s.out, nil
}

func (s *PendingSubscriber) dial(ctx context.Context) error {
	if s.config.WSURL == "" {
		return errors.New("ws url not configured")
	}

	client, err := DialRPC(ctx, s.config.WSURL, nil)
	if err != nil {
		return err
	}

	s.clientMu.Lock()
	if s.rpcClient != nil {
		s.rpcClient.Close()
	}
	s.rpcClient = client
	s.clientMu.Unlock()
	return nil
}

func (s *PendingSubscriber) run(ctx context.Context) {
	attempt := 0
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			s.state.Store(domain.StateDisconnected)
			return
		}

		attempt++
		s.state.Store(domain.StateReconnecting)
		s.logger.Warn(ctx, "mempool stream ended, reconnecting", "error", err, "attempt", attempt)

		if !sleepCtx(ctx, nil, backoff(s.config.InitialBackoff, s.config.MaxBackoff, attempt)) {
			return
		}
		if err := s.dial(ctx); err != nil {
			s.logger.Error(ctx, "mempool redial failed", "error", err)
			continue
		}
		attempt = 0
	}
}

// stream runs one subscription until it errors.
func (s *PendingSubscriber) stream(ctx context.Context) error {
	s.clientMu.Lock()
	client := s.rpcClient
	s.clientMu.Unlock()

	if client == nil {
		return errors.New("mempool client closed")
	}
	gc := gethclient.New(client)

	txs := make(chan *types.Transaction, 256)
	sub, err := gc.SubscribeFullPendingTransactions(ctx, txs)
	if err == nil {
		s.state.Store(domain.StateConnected)
		s.logger.Info(ctx, "subscribed to full pending transactions")
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-sub.Err():
				return err
			case tx := <-txs:
				s.handleTx(ctx, tx)
			}
		}
	}

	s.logger.Info(ctx, "full pending subscription unavailable, using hashes", "error", err)

	hashes := make(chan common.Hash, 1024)
	hsub, err := gc.SubscribePendingTransactions(ctx, hashes)
	if err != nil {
		return fmt.Errorf("subscribe pending hashes: %w", err)
	}
	defer hsub.Unsubscribe()

	s.state.Store(domain.StateConnected)
	eth := ethclient.NewClient(client)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-hsub.Err():
			return err
		case h := <-hashes:
			if !s.firstSighting(ctx, h) {
				continue
			}
			tx, err := s.lookup(ctx, eth, h)
			if err != nil {
				// usually mined or replaced before we asked
				s.metrics.lookupErrors.Add(ctx, 1)
				s.logger.Debug(ctx, "pending tx lookup failed", "tx", h.Hex(), "error", err)
				continue
			}
			s.emit(ctx, tx)
		}
	}
}

func (s *PendingSubscriber) lookup(ctx context.Context, eth *ethclient.Client, h common.Hash) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.LookupTimeout)
	defer cancel()

	tx, _, err := eth.TransactionByHash(ctx, h)
	return tx, err
}

func (s *PendingSubscriber) handleTx(ctx context.Context, tx *types.Transaction) {
	if tx == nil || !s.firstSighting(ctx, tx.Hash()) {
		return
	}
	s.emit(ctx, tx)
}

func (s *PendingSubscriber) firstSighting(ctx context.Context, h common.Hash) bool {
	if s.seen.SetIfAbsent(ctx, h, struct{}{}, s.config.DedupTTL) {
		return true
	}
	s.metrics.duplicates.Add(ctx, 1)
	return false
}

func (s *PendingSubscriber) emit(ctx context.Context, tx *types.Transaction) {
	from, err := types.Sender(s.signer, tx)
	if err != nil {
		s.metrics.lookupErrors.Add(ctx, 1)
		s.logger.Debug(ctx, "sender recovery failed",
			"tx", tx.Hash().Hex(),
			"error", apperror.New(apperror.CodeSenderRecoveryFailed, apperror.WithCause(err)))
		return
	}

	ptx := domain.NewPendingTx(tx, from, time.Now())

	select {
	case s.out <- ptx:
		s.metrics.received.Add(ctx, 1, metric.WithAttributes(attribute.Int("tx_type", int(ptx.Type))))
	default:
		s.metrics.dropped.Add(ctx, 1)
	}
}

// State returns the current connection state.
func (s *PendingSubscriber) State() domain.ConnectionState {
	return s.state.Load().(domain.ConnectionState)
}

// Close releases the websocket connection.
func (s *PendingSubscriber) Close() error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.rpcClient != nil {
		s.rpcClient.Close()
		s.rpcClient = nil
	}
	s.seen.Close()
	s.state.Store(domain.StateDisconnected)
	return nil
}
