package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PendingTx is an unconfirmed transaction with its recovered sender.
type PendingTx struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address // nil for contract creation
	Nonce     uint64
	Data      []byte
	Value     *big.Int
	Gas       uint64
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
	Type      uint8
	ChainID   *big.Int
	SeenAt    time.Time
}

// NewPendingTx copies the fields the pipeline needs out of tx.
func NewPendingTx(tx *types.Transaction, from common.Address, seenAt time.Time) *PendingTx {
	return &PendingTx{
		Hash:      tx.Hash(),
		From:      from,
		To:        tx.To(),
		Nonce:     tx.Nonce(),
		Data:      tx.Data(),
		Value:     tx.Value(),
		Gas:       tx.Gas(),
		GasPrice:  tx.GasPrice(),
		GasFeeCap: tx.GasFeeCap(),
		GasTipCap: tx.GasTipCap(),
		Type:      tx.Type(),
		ChainID:   tx.ChainId(),
		SeenAt:    seenAt,
	}
}

// IsDynamicFee reports whether the transaction prices gas with fee caps.
func (p *PendingTx) IsDynamicFee() bool {
	return p.Type >= types.DynamicFeeTxType
}

// WithNonce returns a shallow copy with the nonce replaced.
func (p *PendingTx) WithNonce(nonce uint64) *PendingTx {
	cp := *p
	cp.Nonce = nonce
	return &cp
}
