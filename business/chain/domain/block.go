// Package domain contains the core domain types for the chain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Block represents an Ethereum block header.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
	GasLimit   uint64
	GasUsed    uint64
	BaseFee    *big.Int
}

// BlockFromHeader converts a go-ethereum header.
func BlockFromHeader(h *types.Header) *Block {
	baseFee := new(big.Int)
	if h.BaseFee != nil {
		baseFee.Set(h.BaseFee)
	}
	return &Block{
		Number:     h.Number.Uint64(),
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Timestamp:  time.Unix(int64(h.Time), 0),
		GasLimit:   h.GasLimit,
		GasUsed:    h.GasUsed,
		BaseFee:    baseFee,
	}
}

// NewBlock is the block context the strategy simulates against: the latest
// confirmed block and the base fee projected for the one after it.
type NewBlock struct {
	Number      uint64
	BaseFee     *big.Int
	NextBaseFee *big.Int
}

// NewBlockFrom derives the block context from a confirmed block.
func NewBlockFrom(b *Block) NewBlock {
	baseFee := b.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	return NewBlock{
		Number:      b.Number,
		BaseFee:     new(big.Int).Set(baseFee),
		NextBaseFee: CalculateNextBaseFee(b.GasUsed, b.GasLimit, baseFee),
	}
}

// NumberBig returns the block number as *big.Int for RPC calls.
func (b NewBlock) NumberBig() *big.Int {
	return new(big.Int).SetUint64(b.Number)
}

// ConnectionState represents the state of a chain connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)
