package app

import (
	"context"
	"errors"

	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/eventbus"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// ChainService turns the node's block and mempool streams into bus events.
type ChainService struct {
	blocks  BlockSubscriber
	pending PendingTxSubscriber
	bus     Publisher
	logger  logger.LoggerInterface
}

// NewChainService creates a new ChainService.
func NewChainService(blocks BlockSubscriber, pending PendingTxSubscriber, bus Publisher, log logger.LoggerInterface) *ChainService {
	return &ChainService{
		blocks:  blocks,
		pending: pending,
		bus:     bus,
		logger:  log,
	}
}

// Run publishes a BlockEvent for every confirmed block and a PendingTxEvent for
// every mempool transaction until ctx is done or both streams end.
func (s *ChainService) Run(ctx context.Context) error {
	blocks, err := s.blocks.Subscribe(ctx)
	if err != nil {
		return err
	}
	pending, err := s.pending.Subscribe(ctx)
	if err != nil {
		return err
	}

	for blocks != nil || pending != nil {
		var ev domain.Event

		select {
		case <-ctx.Done():
			return nil

		case b, ok := <-blocks:
			if !ok {
				blocks = nil
				s.logger.Warn(ctx, "block stream ended")
				continue
			}
			nb := domain.NewBlockFrom(b)
			ev = domain.BlockEvent{Block: nb}
			s.logger.Debug(ctx, "new block",
				"number", nb.Number,
				"base_fee", nb.BaseFee.String(),
				"next_base_fee", nb.NextBaseFee.String())

		case tx, ok := <-pending:
			if !ok {
				pending = nil
				s.logger.Warn(ctx, "pending transaction stream ended")
				continue
			}
			ev = domain.PendingTxEvent{Tx: tx}
		}

		if err := s.bus.Publish(ev); err != nil {
			if errors.Is(err, eventbus.ErrClosed) {
				return apperror.New(apperror.CodeEventBusClosed, apperror.WithCause(err))
			}
			return err
		}
	}

	return nil
}

// ConnectionState returns the block subscription state.
func (s *ChainService) ConnectionState() domain.ConnectionState {
	return s.blocks.State()
}

// MempoolState returns the pending transaction subscription state.
func (s *ChainService) MempoolState() domain.ConnectionState {
	return s.pending.State()
}
