package ethereum

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/circuitbreaker"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// SubscriberConfig holds configuration for the block subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary)
	HTTPURL        string        // HTTP endpoint (fallback)
	HTTPClient     *http.Client  // transport for the HTTP endpoint
	PollInterval   time.Duration // Polling interval for HTTP fallback
	InitialBackoff time.Duration // First WS reconnect delay
	MaxBackoff     time.Duration // Upper bound for the reconnect delay
	MaxReconnects  int           // 0 retries forever
	BufferSize     int           // Block channel buffer size
}

// DefaultSubscriberConfig returns sensible defaults.
func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   12 * time.Second, // ~1 block time
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BufferSize:     16,
	}
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// BlockSubscriber streams confirmed block headers. WebSocket newHeads is the
// primary source; HTTP polling takes over when the socket cannot be kept up.
type BlockSubscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface

	wsClient   *ethclient.Client
	httpClient *ethclient.Client
	clientMu   sync.RWMutex

	state      atomic.Value // domain.ConnectionState
	usingHTTP  atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32

	blocks  chan *domain.Block
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool

	wsCB   *circuitbreaker.CircuitBreaker[*types.Header]
	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewBlockSubscriber creates a new block subscriber.
func NewBlockSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*BlockSubscriber, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	s := &BlockSubscriber{
		config: cfg,
		logger: log,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}
	s.state.Store(domain.StateDisconnected)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	s.wsCB = circuitbreaker.New[*types.Header](s.breakerConfig("eth-ws"))
	s.httpCB = circuitbreaker.New[*types.Header](s.breakerConfig("eth-http"))

	return s, nil
}

func (s *BlockSubscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total Ethereum blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total Ethereum subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Block subscription state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP fallback was used"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

func (s *BlockSubscriber) breakerConfig(name string) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	return cfg
}

// Connect dials both endpoints ahead of Subscribe. Failures are retried by Subscribe.
func (s *BlockSubscriber) Connect(ctx context.Context) error {
	wsErr := s.connectWS(ctx)
	httpErr := s.connectHTTP(ctx)
	if wsErr != nil && httpErr != nil {
		return errors.Join(wsErr, httpErr)
	}
	return nil
}

// Subscribe starts listening for new blocks and returns a channel.
func (s *BlockSubscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.blocks.subscribe")
	defer span.End()

	if s.closed.Load() {
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	}

	s.setState(domain.StateConnecting)

	if err := s.ensureWS(ctx); err != nil {
		s.logger.Warn(ctx, "ws connection failed, trying http fallback", "error", err)
		span.AddEvent("ws_failed_trying_http")

		if err := s.ensureHTTP(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "both connections failed")
			s.setState(domain.StateDisconnected)
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext("failed to connect via WS and HTTP"))
		}

		s.usingHTTP.Store(true)
		go s.runHTTPPoller(ctx)
	} else {
		go s.runWSSubscription(ctx)
	}

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")

	return s.blocks, nil
}

func (s *BlockSubscriber) ensureWS(ctx context.Context) error {
	s.clientMu.RLock()
	ok := s.wsClient != nil
	s.clientMu.RUnlock()
	if ok {
		return nil
	}
	return s.connectWS(ctx)
}

func (s *BlockSubscriber) ensureHTTP(ctx context.Context) error {
	s.clientMu.RLock()
	ok := s.httpClient != nil
	s.clientMu.RUnlock()
	if ok {
		return nil
	}
	return s.connectHTTP(ctx)
}

func (s *BlockSubscriber) connectWS(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "eth.connect.ws")
	defer span.End()

	if s.config.WSURL == "" {
		return errors.New("ws url not configured")
	}

	rpcClient, err := DialRPC(ctx, s.config.WSURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return err
	}

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
	}
	s.wsClient = ethclient.NewClient(rpcClient)
	s.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (s *BlockSubscriber) connectHTTP(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "eth.connect.http")
	defer span.End()

	if s.config.HTTPURL == "" {
		return errors.New("http url not configured")
	}

	rpcClient, err := DialRPC(ctx, s.config.HTTPURL, s.config.HTTPClient)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return err
	}

	s.clientMu.Lock()
	s.httpClient = ethclient.NewClient(rpcClient)
	s.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (s *BlockSubscriber) runWSSubscription(ctx context.Context) {
	headers := make(chan *types.Header, s.config.BufferSize)

	s.clientMu.RLock()
	client := s.wsClient
	s.clientMu.RUnlock()

	if client == nil {
		s.handleWSDisconnect(ctx)
		return
	}

	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.logger.Error(ctx, "subscribe new head failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.handleWSDisconnect(ctx)
		return
	}

	s.reconnects.Store(0)
	s.logger.Info(ctx, "subscribed to new heads via ws")

	s.processWSHeaders(ctx, headers, sub)

	sub.Unsubscribe()
	s.handleWSDisconnect(ctx)
}

func (s *BlockSubscriber) processWSHeaders(ctx context.Context, headers <-chan *types.Header, sub interface{ Err() <-chan error }) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "subscription error", "error", err)
				s.metrics.subscribeErrors.Add(ctx, 1)
			}
			return
		case header := <-headers:
			if header == nil {
				continue
			}
			s.processHeader(ctx, header, false)
		}
	}
}

// handleWSDisconnect retries the socket with exponential backoff and falls
// back to HTTP polling when the retry fails.
func (s *BlockSubscriber) handleWSDisconnect(ctx context.Context) {
	if s.closed.Load() || ctx.Err() != nil {
		return
	}

	s.setState(domain.StateReconnecting)
	attempt := s.reconnects.Add(1)

	if limit := s.config.MaxReconnects; limit > 0 && int(attempt) > limit {
		s.logger.Error(ctx, "ws reconnect limit reached, staying on http", "attempts", attempt-1)
		s.startHTTPFallback(ctx)
		return
	}

	if !sleepCtx(ctx, s.done, backoff(s.config.InitialBackoff, s.config.MaxBackoff, int(attempt))) {
		return
	}

	if err := s.connectWS(ctx); err != nil {
		s.logger.Warn(ctx, "ws reconnect failed, switching to http", "error", err, "attempt", attempt)
		s.startHTTPFallback(ctx)
		return
	}

	s.usingHTTP.Store(false)
	s.setState(domain.StateConnected)
	go s.runWSSubscription(ctx)
}

func (s *BlockSubscriber) startHTTPFallback(ctx context.Context) {
	if s.usingHTTP.Load() {
		return
	}
	if err := s.ensureHTTP(ctx); err != nil {
		s.logger.Error(ctx, "http fallback connection failed", "error", err)
		s.setState(domain.StateDisconnected)
		return
	}

	s.usingHTTP.Store(true)
	s.metrics.httpFallbackUsed.Add(ctx, 1)
	s.setState(domain.StateConnected)
	go s.runHTTPPoller(ctx)
}

func (s *BlockSubscriber) runHTTPPoller(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "starting http polling fallback", "interval", s.config.PollInterval)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollLatestBlock(ctx)
		}
	}
}

func (s *BlockSubscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()

	if client == nil {
		span.AddEvent("no_http_client")
		return
	}

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	if header.Number.Uint64() <= s.lastBlock.Load() {
		span.AddEvent("duplicate_block")
		return
	}

	s.processHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

func (s *BlockSubscriber) processHeader(ctx context.Context, header *types.Header, fromHTTP bool) {
	ctx, span := s.tracer.Start(ctx, "eth.process.header",
		trace.WithAttributes(
			attribute.Int64("block_number", header.Number.Int64()),
			attribute.Bool("from_http", fromHTTP),
		),
	)
	defer span.End()

	block := domain.BlockFromHeader(header)

	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()))
	s.lastBlock.Store(block.Number)

	select {
	case s.blocks <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"number", block.Number,
			"hash", block.Hash.Hex()[:10],
			"latency_ms", latency.Milliseconds())
	default:
		span.AddEvent("block_dropped_buffer_full")
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}
}

// LatestBlock retrieves the most recent block.
func (s *BlockSubscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.clientMu.RLock()
	wsClient := s.wsClient
	httpClient := s.httpClient
	s.clientMu.RUnlock()

	var header *types.Header
	var err error

	if wsClient != nil && !s.usingHTTP.Load() {
		header, err = s.wsCB.Execute(func() (*types.Header, error) {
			return wsClient.HeaderByNumber(ctx, nil)
		})
	}

	if header == nil && httpClient != nil {
		header, err = s.httpCB.Execute(func() (*types.Header, error) {
			return httpClient.HeaderByNumber(ctx, nil)
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}

	if header == nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("no ethereum client connected"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return domain.BlockFromHeader(header), nil
}

// State returns the current connection state.
func (s *BlockSubscriber) State() domain.ConnectionState {
	return s.state.Load().(domain.ConnectionState)
}

// Close gracefully closes the subscriber.
func (s *BlockSubscriber) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		return nil
	}

	s.logger.Info(context.Background(), "closing block subscriber")

	s.closed.Store(true)
	close(s.done)

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	if s.httpClient != nil {
		s.httpClient.Close()
		s.httpClient = nil
	}
	s.clientMu.Unlock()

	s.setState(domain.StateDisconnected)
	return nil
}

func (s *BlockSubscriber) setState(state domain.ConnectionState) {
	s.state.Store(state)
	s.metrics.connectionState.Record(context.Background(), stateValue(state))
}

func stateValue(state domain.ConnectionState) int64 {
	switch state {
	case domain.StateConnecting:
		return 1
	case domain.StateConnected:
		return 2
	case domain.StateReconnecting:
		return 3
	default:
		return 0
	}
}

// backoff doubles initial per attempt, capped at ceiling.
func backoff(initial, ceiling time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}

// sleepCtx waits for d and reports false if ctx or done fired first.
func sleepCtx(ctx context.Context, done <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	case <-t.C:
		return true
	}
}
