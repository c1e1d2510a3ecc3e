package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// LoaderConfig controls the bootstrap scan.
type LoaderConfig struct {
	ChainID          uint64
	MainCurrency     domain.MainCurrency
	StartBlock       uint64
	ChunkSize        uint64
	ScanConcurrency  int
	TokenConcurrency int
}

// Loader builds the registry snapshot: it scans factory events in chunks
// from the last persisted block, resolves the metadata of every token seen
// and filters pools to those with both sides resolved.
type Loader struct {
	config LoaderConfig
	pairs  PairSource
	tokens TokenSource
	store  Store // optional
	logger logger.LoggerInterface
}

// NewLoader creates a registry loader. store may be nil.
func NewLoader(cfg LoaderConfig, pairs PairSource, tokens TokenSource, store Store, log logger.LoggerInterface) *Loader {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 50_000
	}
	if cfg.ScanConcurrency < 1 {
		cfg.ScanConcurrency = 1
	}
	if cfg.TokenConcurrency < 1 {
		cfg.TokenConcurrency = 1
	}
	return &Loader{
		config: cfg,
		pairs:  pairs,
		tokens: tokens,
		store:  store,
		logger: log,
	}
}

// Load runs the bootstrap and returns the filtered snapshot.
func (l *Loader) Load(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()

	pools, head, err := l.loadPools(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := l.loadTokens(ctx, pools)
	if err != nil {
		return nil, err
	}

	snap := domain.NewSnapshot(l.config.MainCurrency, pools, tokens, head)
	if _, ok := snap.Token(l.config.MainCurrency.Address); !ok {
		return nil, apperror.New(apperror.CodeRegistryBootstrapFailed,
			apperror.WithContext(fmt.Sprintf("main currency %s has no metadata", l.config.MainCurrency.Address.Hex())))
	}

	l.logger.Info(ctx, "registry loaded",
		"pools", snap.PoolCount(),
		"main_pools", snap.MainPoolCount(),
		"tokens", snap.TokenCount(),
		"dropped", snap.Dropped(),
		"head", head,
		"elapsed", time.Since(start).String(),
	)
	return snap, nil
}

func (l *Loader) loadPools(ctx context.Context) ([]domain.Pool, uint64, error) {
	var (
		pools []domain.Pool
		last  uint64
	)
	if l.store != nil {
		cached, cachedLast, err := l.store.LoadPools(ctx)
		if err != nil {
			l.logger.Warn(ctx, "registry cache unreadable, rescanning", "error", err)
		} else {
			pools, last = cached, cachedLast
		}
	}

	from := l.config.StartBlock
	if last >= from {
		from = last + 1
	}

	head, err := l.pairs.HeadBlock(ctx)
	if err != nil {
		return nil, 0, apperror.New(apperror.CodePoolScanFailed,
			apperror.WithCause(err), apperror.WithContext("head block"))
	}
	if from > head {
		l.logger.Info(ctx, "pool cache up to date", "pools", len(pools), "last_block", last)
		return pools, max(last, head), nil
	}

	l.logger.Info(ctx, "scanning pair creations",
		"from", from, "to", head, "cached_pools", len(pools), "chunk", l.config.ChunkSize)

	chunks := splitRange(from, head, l.config.ChunkSize)
	window := l.config.ScanConcurrency

	for i := 0; i < len(chunks); i += window {
		batch := chunks[i:min(i+window, len(chunks))]
		found, err := l.scanBatch(ctx, batch)
		if err != nil {
			return nil, 0, err
		}
		pools = append(pools, found...)
		last = batch[len(batch)-1].to

		if l.store != nil {
			if err := l.store.SavePools(ctx, found, last); err != nil {
				l.logger.Warn(ctx, "failed to persist scan progress", "last_block", last, "error", err)
			}
		}
		l.logger.Debug(ctx, "scan progress", "last_block", last, "head", head, "pools", len(pools))
	}

	return pools, last, nil
}

// scanBatch scans chunks concurrently and returns their pools in chunk order.
func (l *Loader) scanBatch(ctx context.Context, batch []blockRange) ([]domain.Pool, error) {
	results := make([][]domain.Pool, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range batch {
		g.Go(func() error {
			found, err := l.pairs.ScanPairs(gctx, r.from, r.to)
			if err != nil {
				return apperror.New(apperror.CodePoolScanFailed,
					apperror.WithCause(err),
					apperror.WithContext(fmt.Sprintf("blocks %d-%d", r.from, r.to)))
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Pool
	for _, found := range results {
		out = append(out, found...)
	}
	return out, nil
}

func (l *Loader) loadTokens(ctx context.Context, pools []domain.Pool) ([]*asset.Asset, error) {
	reg := asset.NewRegistry(l.config.ChainID)
	for _, a := range asset.WellKnown(l.config.ChainID) {
		reg.Upsert(a)
	}
	if l.store != nil {
		cached, err := l.store.LoadTokens(ctx)
		if err != nil {
			l.logger.Warn(ctx, "token cache unreadable, refetching", "error", err)
		}
		for _, a := range cached {
			reg.Upsert(a)
		}
	}

	missing := missingTokens(reg, pools, l.config.MainCurrency.Address)
	if len(missing) == 0 {
		return reg.All(), nil
	}

	l.logger.Info(ctx, "fetching token metadata", "missing", len(missing), "known", reg.Count())

	var (
		mu      sync.Mutex
		fetched []*asset.Asset
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.TokenConcurrency)
	for _, addr := range missing {
		g.Go(func() error {
			a, err := l.tokens.FetchToken(gctx, addr)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Debug(gctx, "token metadata unavailable", "token", addr.Hex(), "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			reg.Upsert(a)
			mu.Lock()
			fetched = append(fetched, a)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperror.New(apperror.CodeRegistryBootstrapFailed,
			apperror.WithCause(err), apperror.WithContext("token metadata"))
	}

	if l.store != nil && len(fetched) > 0 {
		if err := l.store.SaveTokens(ctx, fetched); err != nil {
			l.logger.Warn(ctx, "failed to persist tokens", "count", len(fetched), "error", err)
		}
	}

	l.logger.Info(ctx, "token metadata fetched", "resolved", len(fetched), "failed", failed)
	return reg.All(), nil
}

// missingTokens lists, in first-seen order, the pool tokens and the main
// currency that reg does not know yet.
func missingTokens(reg *asset.Registry, pools []domain.Pool, main common.Address) []common.Address {
	seen := make(map[common.Address]struct{})
	var out []common.Address

	add := func(addr common.Address) {
		if _, ok := seen[addr]; ok || reg.Has(addr) {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	add(main)
	for _, p := range pools {
		add(p.Token0)
		add(p.Token1)
	}
	return out
}

type blockRange struct {
	from, to uint64
}

// splitRange cuts [from, to] into inclusive ranges of at most size blocks.
func splitRange(from, to, size uint64) []blockRange {
	if from > to || size == 0 {
		return nil
	}
	var out []blockRange
	for start := from; start <= to; start += size {
		end := start + size - 1
		if end > to || end < start {
			end = to
		}
		out = append(out, blockRange{from: start, to: end})
		if end == to {
			break
		}
	}
	return out
}
