package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// ElasticityMultiplier bounds gas used relative to the target.
	ElasticityMultiplier = 2
	// BaseFeeChangeDenominator bounds the per-block base fee change to 1/8.
	BaseFeeChangeDenominator = 8
)

// CalculateNextBaseFee projects the next block's base fee from the parent's
// gas usage, following EIP-1559. The result is never negative.
func CalculateNextBaseFee(gasUsed, gasLimit uint64, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int)
	}

	target := gasLimit / ElasticityMultiplier
	if target == 0 {
		target = 1
	}

	next := new(big.Int).Set(baseFee)
	switch {
	case gasUsed == target:
		return next

	case gasUsed > target:
		delta := new(big.Int).Mul(baseFee, new(big.Int).SetUint64(gasUsed-target))
		delta.Div(delta, new(big.Int).SetUint64(target))
		delta.Div(delta, big.NewInt(BaseFeeChangeDenominator))
		if delta.Sign() == 0 {
			delta.SetInt64(1)
		}
		return next.Add(next, delta)

	default:
		delta := new(big.Int).Mul(baseFee, new(big.Int).SetUint64(target-gasUsed))
		delta.Div(delta, new(big.Int).SetUint64(target))
		delta.Div(delta, big.NewInt(BaseFeeChangeDenominator))
		next.Sub(next, delta)
		if next.Sign() < 0 {
			next.SetInt64(0)
		}
		return next
	}
}

// Gwei formats a wei amount in gwei.
func Gwei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -9)
}
