package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// --- fakes ---

type fakePairs struct {
	mu     sync.Mutex
	head   uint64
	pools  []domain.Pool
	failAt uint64
	ranges [][2]uint64
}

func (f *fakePairs) HeadBlock(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakePairs) ScanPairs(_ context.Context, from, to uint64) ([]domain.Pool, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, [2]uint64{from, to})
	f.mu.Unlock()

	if f.failAt != 0 && from <= f.failAt && f.failAt <= to {
		return nil, errors.New("query returned more than 10000 results")
	}
	var out []domain.Pool
	for _, p := range f.pools {
		if p.CreatedBlock >= from && p.CreatedBlock <= to {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTokens struct {
	mu      sync.Mutex
	known   map[common.Address]*asset.Asset
	fetched []common.Address
}

func (f *fakeTokens) FetchToken(_ context.Context, addr common.Address) (*asset.Asset, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, addr)
	f.mu.Unlock()

	if a, ok := f.known[addr]; ok {
		return a, nil
	}
	return nil, apperror.New(apperror.CodeTokenMetadataUnavailable)
}

type memStore struct {
	pools     []domain.Pool
	lastBlock uint64
	tokens    []*asset.Asset
	saves     int
}

func (m *memStore) LoadPools(context.Context) ([]domain.Pool, uint64, error) {
	return append([]domain.Pool(nil), m.pools...), m.lastBlock, nil
}

func (m *memStore) SavePools(_ context.Context, pools []domain.Pool, last uint64) error {
	m.pools = append(m.pools, pools...)
	m.lastBlock = last
	m.saves++
	return nil
}

func (m *memStore) LoadTokens(context.Context) ([]*asset.Asset, error) {
	return m.tokens, nil
}

func (m *memStore) SaveTokens(_ context.Context, tokens []*asset.Asset) error {
	m.tokens = append(m.tokens, tokens...)
	return nil
}

// --- fixtures ---

func addr(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(n)))
}

var (
	tokenA = asset.MustNewToken(1, addr(100), "AAA", "Token A", 18)
	tokenB = asset.MustNewToken(1, addr(101), "BBB", "Token B", 6)
	broken = addr(102)
)

func fixturePools() []domain.Pool {
	return []domain.Pool{
		{Address: addr(1), Token0: asset.AddrWETHEthereum, Token1: tokenA.Address(), Version: domain.VersionV2, CreatedBlock: 100},
		{Address: addr(2), Token0: tokenB.Address(), Token1: asset.AddrWETHEthereum, Version: domain.VersionV2, CreatedBlock: 250},
		{Address: addr(3), Token0: broken, Token1: asset.AddrWETHEthereum, Version: domain.VersionV2, CreatedBlock: 420},
	}
}

func testConfig() LoaderConfig {
	return LoaderConfig{
		ChainID:          1,
		MainCurrency:     domain.MainCurrency{Address: asset.AddrWETHEthereum, BalanceSlot: 3},
		StartBlock:       100,
		ChunkSize:        100,
		ScanConcurrency:  2,
		TokenConcurrency: 4,
	}
}

func newTokens() *fakeTokens {
	return &fakeTokens{known: map[common.Address]*asset.Asset{
		tokenA.Address(): tokenA,
		tokenB.Address(): tokenB,
	}}
}

// --- tests ---

func TestLoader_Load(t *testing.T) {
	pairs := &fakePairs{head: 500, pools: fixturePools()}
	tokens := newTokens()
	store := &memStore{}

	snap, err := NewLoader(testConfig(), pairs, tokens, store, logger.NewNop()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if snap.PoolCount() != 2 {
		t.Errorf("PoolCount() = %d, want 2", snap.PoolCount())
	}
	if snap.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1 (pool with broken token)", snap.Dropped())
	}
	if _, ok := snap.LookupPool(addr(3)); ok {
		t.Error("pool with unresolved token should not be tracked")
	}
	if !snap.IsMainCurrency(asset.AddrWETHEthereum) {
		t.Error("WETH should be the main currency")
	}
	if snap.Head() != 500 {
		t.Errorf("Head() = %d, want 500", snap.Head())
	}

	// 100..500 in chunks of 100 -> 5 ranges, saved in windows of 2.
	if len(pairs.ranges) != 5 {
		t.Errorf("scanned %d ranges, want 5: %v", len(pairs.ranges), pairs.ranges)
	}
	if store.saves != 3 {
		t.Errorf("store saves = %d, want 3", store.saves)
	}
	if store.lastBlock != 500 {
		t.Errorf("store lastBlock = %d, want 500", store.lastBlock)
	}
	if len(store.tokens) != 2 {
		t.Errorf("stored %d tokens, want 2", len(store.tokens))
	}
	for _, a := range tokens.fetched {
		if a == asset.AddrWETHEthereum {
			t.Error("well-known WETH metadata should not be fetched")
		}
	}
}

func TestLoader_ResumesFromStore(t *testing.T) {
	all := fixturePools()
	store := &memStore{
		pools:     all[:2],
		lastBlock: 300,
		tokens:    []*asset.Asset{tokenA, tokenB},
	}
	pairs := &fakePairs{head: 500, pools: all}
	tokens := newTokens()

	snap, err := NewLoader(testConfig(), pairs, tokens, store, logger.NewNop()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sort.Slice(pairs.ranges, func(i, j int) bool { return pairs.ranges[i][0] < pairs.ranges[j][0] })
	if len(pairs.ranges) == 0 || pairs.ranges[0][0] != 301 {
		t.Errorf("expected scan to resume at 301, got %v", pairs.ranges)
	}
	if snap.PoolCount() != 2 {
		t.Errorf("PoolCount() = %d, want 2", snap.PoolCount())
	}
	if len(tokens.fetched) != 1 || tokens.fetched[0] != broken {
		t.Errorf("only the unknown token should be fetched, got %v", tokens.fetched)
	}
}

func TestLoader_UpToDateSkipsScan(t *testing.T) {
	store := &memStore{pools: fixturePools()[:1], lastBlock: 500, tokens: []*asset.Asset{tokenA}}
	pairs := &fakePairs{head: 500}

	snap, err := NewLoader(testConfig(), pairs, newTokens(), store, logger.NewNop()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pairs.ranges) != 0 {
		t.Errorf("no scan expected, got %v", pairs.ranges)
	}
	if snap.PoolCount() != 1 {
		t.Errorf("PoolCount() = %d, want 1", snap.PoolCount())
	}
}

func TestLoader_ScanFailure(t *testing.T) {
	pairs := &fakePairs{head: 500, pools: fixturePools(), failAt: 420}

	_, err := NewLoader(testConfig(), pairs, newTokens(), nil, logger.NewNop()).Load(context.Background())
	if !apperror.HasCode(err, apperror.CodePoolScanFailed) {
		t.Fatalf("expected POOL_SCAN_FAILED, got %v", err)
	}
}

func TestLoader_MainCurrencyUnresolved(t *testing.T) {
	cfg := testConfig()
	cfg.ChainID = 5 // no well-known tokens
	cfg.MainCurrency.Address = addr(200)

	_, err := NewLoader(cfg, &fakePairs{head: 99}, newTokens(), nil, logger.NewNop()).Load(context.Background())
	if !apperror.HasCode(err, apperror.CodeRegistryBootstrapFailed) {
		t.Fatalf("expected REGISTRY_BOOTSTRAP_FAILED, got %v", err)
	}
}

func TestSplitRange(t *testing.T) {
	tests := []struct {
		from, to, size uint64
		want           string
	}{
		{100, 500, 100, "[{100 199} {200 299} {300 399} {400 499} {500 500}]"},
		{10_000_000, 10_049_999, 50_000, "[{10000000 10049999}]"},
		{5, 4, 10, "[]"},
		{0, 0, 1, "[{0 0}]"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d/%d", tt.from, tt.to, tt.size), func(t *testing.T) {
			got := fmt.Sprint(splitRange(tt.from, tt.to, tt.size))
			if got != tt.want {
				t.Errorf("splitRange() = %s, want %s", got, tt.want)
			}
		})
	}
}
