// Package app contains the registry bootstrap use case and its ports.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/internal/asset"
)

// PairSource discovers pools from factory creation events.
type PairSource interface {
	// HeadBlock returns the block number the scan should stop at.
	HeadBlock(ctx context.Context) (uint64, error)
	// ScanPairs returns the pools created in [from, to], both inclusive.
	ScanPairs(ctx context.Context, from, to uint64) ([]domain.Pool, error)
}

// TokenSource resolves ERC20 metadata.
type TokenSource interface {
	FetchToken(ctx context.Context, addr common.Address) (*asset.Asset, error)
}

// Store persists scan progress so restarts resume from the last block.
type Store interface {
	LoadPools(ctx context.Context) (pools []domain.Pool, lastBlock uint64, err error)
	SavePools(ctx context.Context, pools []domain.Pool, lastBlock uint64) error
	LoadTokens(ctx context.Context) ([]*asset.Asset, error)
	SaveTokens(ctx context.Context, tokens []*asset.Asset) error
}
