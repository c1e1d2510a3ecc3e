package asset

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe set of tokens keyed by contract address on a
// single chain. The registry loader fills it concurrently while fetching
// ERC20 metadata.
type Registry struct {
	chainID uint64
	byAddr  map[common.Address]*Asset
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry for chainID.
func NewRegistry(chainID uint64) *Registry {
	return &Registry{
		chainID: chainID,
		byAddr:  make(map[common.Address]*Asset),
	}
}

func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Register adds a token. Registering the same address twice is an error;
// tokens from a different chain are rejected.
func (r *Registry) Register(a *Asset) error {
	if a == nil || a.IsNative() {
		return fmt.Errorf("asset: registry only holds tokens")
	}
	if a.ChainID() != r.chainID {
		return fmt.Errorf("asset: %s belongs to chain %d, registry is chain %d", a.Address().Hex(), a.ChainID(), r.chainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddr[a.Address()]; exists {
		return fmt.Errorf("asset: %s already registered", a.ID())
	}
	r.byAddr[a.Address()] = a
	return nil
}

// Upsert adds or replaces a token.
func (r *Registry) Upsert(a *Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddr[a.Address()] = a
}

// Get retrieves a token by contract address.
func (r *Registry) Get(addr common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byAddr[addr]
	return a, ok
}

func (r *Registry) Has(addr common.Address) bool {
	_, ok := r.Get(addr)
	return ok
}

// All returns the tokens ordered by address.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	result := make([]*Asset, 0, len(r.byAddr))
	for _, a := range r.byAddr {
		result = append(result, a)
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(x, y *Asset) int {
		return bytes.Compare(x.Address().Bytes(), y.Address().Bytes())
	})
	return result
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddr)
}
