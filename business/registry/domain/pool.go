// Package domain holds the pool and token registry model.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DEX protocol versions.
const (
	VersionV2 uint8 = 2
	VersionV3 uint8 = 3
)

// Pool is a constant-product liquidity pool discovered from factory events.
type Pool struct {
	Address      common.Address
	Token0       common.Address
	Token1       common.Address
	Version      uint8
	CreatedBlock uint64
}

// Other returns the token on the opposite side of token.
func (p Pool) Other(token common.Address) common.Address {
	if token == p.Token0 {
		return p.Token1
	}
	return p.Token0
}

// Has reports whether token is one of the pool's two sides.
func (p Pool) Has(token common.Address) bool {
	return token == p.Token0 || token == p.Token1
}

// MainCurrency is the reference asset for direction inference, usually the
// wrapped native token.
type MainCurrency struct {
	Address common.Address
	// BalanceSlot is the storage slot of the ERC20 balanceOf mapping.
	BalanceSlot uint64
}

// BalanceKey returns the storage key holding holder's balance: the Solidity
// mapping layout keccak256(pad32(holder) ++ pad32(slot)).
func (m MainCurrency) BalanceKey(holder common.Address) common.Hash {
	slot := common.BigToHash(new(big.Int).SetUint64(m.BalanceSlot))
	return crypto.Keccak256Hash(common.LeftPadBytes(holder.Bytes(), 32), slot.Bytes())
}
