package domain

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/sandwich-bot/internal/asset"
)

// Snapshot is the immutable pool and token registry shared by detection
// tasks. Every pool it holds has both tokens resolved.
type Snapshot struct {
	main    MainCurrency
	pools   map[common.Address]Pool
	tokens  map[common.Address]*asset.Asset
	dropped int
	head    uint64
}

// NewSnapshot copies pools and tokens and drops every pool whose token0 or
// token1 has no metadata. head is the last block covered by the scan.
func NewSnapshot(main MainCurrency, pools []Pool, tokens []*asset.Asset, head uint64) *Snapshot {
	s := &Snapshot{
		main:   main,
		pools:  make(map[common.Address]Pool, len(pools)),
		tokens: make(map[common.Address]*asset.Asset, len(tokens)),
		head:   head,
	}
	for _, t := range tokens {
		if t != nil {
			s.tokens[t.Address()] = t
		}
	}
	for _, p := range pools {
		_, ok0 := s.tokens[p.Token0]
		_, ok1 := s.tokens[p.Token1]
		if !ok0 || !ok1 {
			s.dropped++
			continue
		}
		s.pools[p.Address] = p
	}
	return s
}

// LookupPool returns the tracked pool at addr.
func (s *Snapshot) LookupPool(addr common.Address) (Pool, bool) {
	p, ok := s.pools[addr]
	return p, ok
}

// IsMainCurrency reports whether token is the configured main currency.
func (s *Snapshot) IsMainCurrency(token common.Address) bool {
	return token == s.main.Address
}

// Token returns the metadata of a resolved token.
func (s *Snapshot) Token(addr common.Address) (*asset.Asset, bool) {
	t, ok := s.tokens[addr]
	return t, ok
}

func (s *Snapshot) MainCurrency() MainCurrency {
	return s.main
}

func (s *Snapshot) PoolCount() int {
	return len(s.pools)
}

func (s *Snapshot) TokenCount() int {
	return len(s.tokens)
}

// Dropped is the number of pools filtered out for missing token metadata.
func (s *Snapshot) Dropped() int {
	return s.dropped
}

// Head is the last block the pool scan covered.
func (s *Snapshot) Head() uint64 {
	return s.head
}

// MainPoolCount counts pools with the main currency on one side.
func (s *Snapshot) MainPoolCount() int {
	n := 0
	for _, p := range s.pools {
		if p.Has(s.main.Address) {
			n++
		}
	}
	return n
}

// Pools returns the tracked pools ordered by address.
func (s *Snapshot) Pools() []Pool {
	out := make([]Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pool) int {
		return bytes.Compare(a.Address.Bytes(), b.Address.Bytes())
	})
	return out
}
