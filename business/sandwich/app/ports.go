// Package app contains the sandwich detection pipeline and its port definitions.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	registryDomain "github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/internal/eventbus"
)

// PoolLookup answers registry questions for the extractor.
// registry/domain.Snapshot implements it.
type PoolLookup interface {
	LookupPool(addr common.Address) (registryDomain.Pool, bool)
	IsMainCurrency(token common.Address) bool
	Token(addr common.Address) (*asset.Asset, bool)
}

// RegistryLoader builds the pool snapshot during bootstrap.
type RegistryLoader interface {
	Load(ctx context.Context) (*registryDomain.Snapshot, error)
}

// ChainReader is the subset of node queries the strategy needs.
type ChainReader interface {
	LatestBlock(ctx context.Context) (*chainDomain.Block, error)
	NonceAt(ctx context.Context, account common.Address, block uint64) (uint64, error)
	TraceCall(ctx context.Context, tx *chainDomain.PendingTx, block uint64) (*chainDomain.CallFrame, error)
}

// EventSource hands out bus subscriptions.
type EventSource interface {
	Subscribe() *eventbus.Subscription[chainDomain.Event]
}

// Simulator executes a pending transaction on top of a block and returns its call tree.
type Simulator interface {
	Simulate(ctx context.Context, tx *chainDomain.PendingTx, block chainDomain.NewBlock) (*chainDomain.CallFrame, error)
}

// Reporter receives detection results.
type Reporter interface {
	Start(ctx context.Context) error
	ReportBlock(ctx context.Context, block chainDomain.NewBlock)
	ReportSwaps(ctx context.Context, info *domain.PendingTxInfo)
	Stop() error
}
