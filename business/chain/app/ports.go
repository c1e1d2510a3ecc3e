// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/sandwich-bot/business/chain/domain"
)

// BlockSubscriber defines the interface for subscribing to new blocks.
type BlockSubscriber interface {
	// Subscribe starts listening for new blocks and returns a channel of blocks.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// State returns the current connection state.
	State() domain.ConnectionState
}

// PendingTxSubscriber streams transactions entering the node's mempool.
type PendingTxSubscriber interface {
	Subscribe(ctx context.Context) (<-chan *domain.PendingTx, error)
	State() domain.ConnectionState
}

// ChainReader answers point-in-time queries against the node.
type ChainReader interface {
	LatestBlock(ctx context.Context) (*domain.Block, error)
	BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error)

	// NonceAt returns the account's transaction count as of block.
	NonceAt(ctx context.Context, account common.Address, block uint64) (uint64, error)

	// TraceCall executes tx on top of block with the call tracer and logs enabled.
	TraceCall(ctx context.Context, tx *domain.PendingTx, block uint64) (*domain.CallFrame, error)
}

// Publisher accepts chain events for fan-out.
type Publisher interface {
	Publish(domain.Event) error
}
