package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/infra/postgres"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// SwapStore persists detections. postgres.Store implements it.
type SwapStore interface {
	SaveDetection(ctx context.Context, info *domain.PendingTxInfo) error
}

const (
	defaultStoreQueue = 256
	storeWriteTimeout = 5 * time.Second
)

// StoreReporter writes detections from a background worker. When the queue
// is full the detection is dropped and logged.
type StoreReporter struct {
	store  SwapStore
	logger logger.LoggerInterface
	queue  chan *domain.PendingTxInfo

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewStoreReporter creates a reporter with a queue of size entries.
func NewStoreReporter(store SwapStore, size int, log logger.LoggerInterface) *StoreReporter {
	if size <= 0 {
		size = defaultStoreQueue
	}
	return &StoreReporter{
		store:  store,
		logger: log,
		queue:  make(chan *domain.PendingTxInfo, size),
		done:   make(chan struct{}),
	}
}

func (r *StoreReporter) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return nil
	}
	r.started = true
	go r.run()
	return nil
}

func (r *StoreReporter) ReportBlock(context.Context, chainDomain.NewBlock) {}

func (r *StoreReporter) ReportSwaps(ctx context.Context, info *domain.PendingTxInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- info:
	default:
		r.logger.Warn(ctx, "swap store queue full, dropping detection",
			"tx", info.PendingTx.Hash.Hex())
	}
}

// Stop drains the queue and waits for the worker.
func (r *StoreReporter) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
	}
	return nil
}

func (r *StoreReporter) run() {
	defer close(r.done)
	for info := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		err := r.store.SaveDetection(ctx, info)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, postgres.ErrDuplicateDetection):
			r.logger.Debug(context.Background(), "detection already stored",
				"tx", info.PendingTx.Hash.Hex())
		default:
			r.logger.Error(context.Background(), "failed to store detection",
				"tx", info.PendingTx.Hash.Hex(),
				"error", err)
		}
	}
}
