// Package domain contains the core domain types for sandwich detection.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/sandwich-bot/internal/asset"
)

// V2SwapTopic is keccak256("Swap(address,uint256,uint256,uint256,uint256,address)"),
// the event every Uniswap V2 style pair emits.
var V2SwapTopic = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))

// V2SwapSelector is the first four bytes of V2SwapTopic (0xd78ad95f).
var V2SwapSelector = [4]byte{0xd7, 0x8a, 0xd9, 0x5f}

// SwapDirection is relative to the main currency.
type SwapDirection uint8

const (
	// Buy spends main currency for the target token.
	Buy SwapDirection = iota
	// Sell spends the target token for main currency.
	Sell
)

func (d SwapDirection) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// InferDirection maps the pool-relative swap direction to the main currency.
// zeroForOne means token0 went in and token1 came out.
func InferDirection(token0IsMain, zeroForOne bool) SwapDirection {
	if token0IsMain == zeroForOne {
		return Buy
	}
	return Sell
}

// SwapInfo is one swap against a tracked pool found in a simulated trace.
type SwapInfo struct {
	TxHash       common.Hash
	TargetPair   common.Address
	MainCurrency common.Address
	TargetToken  common.Address
	Version      uint8
	Token0IsMain bool
	Direction    SwapDirection

	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int

	// LogIndex is the position of the swap log in flattened trace order.
	LogIndex int

	// Token metadata from the registry, nil when unknown.
	MainAsset   *asset.Asset
	TargetAsset *asset.Asset
}

// MainAmount is the main currency spent (Buy) or received (Sell).
func (s SwapInfo) MainAmount() *big.Int {
	in, out := s.Amount1In, s.Amount1Out
	if s.Token0IsMain {
		in, out = s.Amount0In, s.Amount0Out
	}
	if s.Direction == Buy {
		return orZero(in)
	}
	return orZero(out)
}

// TargetAmount is the target token received (Buy) or spent (Sell).
func (s SwapInfo) TargetAmount() *big.Int {
	in, out := s.Amount0In, s.Amount0Out
	if s.Token0IsMain {
		in, out = s.Amount1In, s.Amount1Out
	}
	if s.Direction == Buy {
		return orZero(out)
	}
	return orZero(in)
}

// TargetSymbol falls back to the shortened address without metadata.
func (s SwapInfo) TargetSymbol() string {
	if s.TargetAsset != nil {
		return s.TargetAsset.Symbol()
	}
	return s.TargetToken.Hex()[:10]
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
