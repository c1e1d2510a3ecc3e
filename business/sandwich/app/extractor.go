package app

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
)

var swapAmounts = func() abi.Arguments {
	u256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: u256}, {Type: u256}, {Type: u256}, {Type: u256}}
}()

// UndecodableLog is a swap log on a tracked pool whose data did not decode.
type UndecodableLog struct {
	Pool     common.Address
	LogIndex int
	Err      error
}

// Extraction is the result of scanning one transaction's logs.
type Extraction struct {
	Swaps       []domain.SwapInfo
	Undecodable []UndecodableLog
}

// Extractor turns V2 Swap logs on tracked main-currency pools into SwapInfo.
type Extractor struct {
	pools PoolLookup
}

// NewExtractor creates an Extractor reading pools from lookup.
func NewExtractor(lookup PoolLookup) *Extractor {
	return &Extractor{pools: lookup}
}

// Extract flattens frame and extracts the swaps of tx. A too-deep trace still
// yields the swaps found before the limit alongside the error.
func (e *Extractor) Extract(frame *chainDomain.CallFrame, tx *chainDomain.PendingTx) (Extraction, error) {
	logs, err := Flatten(frame)
	return e.ExtractLogs(tx.Hash, logs), err
}

// ExtractLogs scans logs in order. Logs that are not V2 swaps, target untracked
// pools or pools without the main currency are skipped.
func (e *Extractor) ExtractLogs(txHash common.Hash, logs []chainDomain.CallLog) Extraction {
	var out Extraction

	for i, lg := range logs {
		if len(lg.Topics) < 2 || !bytes.Equal(lg.Topics[0][:4], domain.V2SwapSelector[:]) {
			continue
		}

		pool, ok := e.pools.LookupPool(lg.Address)
		if !ok {
			continue
		}

		var token0IsMain bool
		switch {
		case e.pools.IsMainCurrency(pool.Token0):
			token0IsMain = true
		case e.pools.IsMainCurrency(pool.Token1):
			token0IsMain = false
		default:
			continue
		}

		amounts, err := decodeSwapAmounts(lg.Data)
		if err != nil {
			out.Undecodable = append(out.Undecodable, UndecodableLog{
				Pool:     lg.Address,
				LogIndex: i,
				Err:      err,
			})
			continue
		}

		zeroForOne := amounts[0].Sign() > 0 && amounts[3].Sign() > 0

		swap := domain.SwapInfo{
			TxHash:       txHash,
			TargetPair:   pool.Address,
			Version:      pool.Version,
			Token0IsMain: token0IsMain,
			Direction:    domain.InferDirection(token0IsMain, zeroForOne),
			Amount0In:    amounts[0],
			Amount1In:    amounts[1],
			Amount0Out:   amounts[2],
			Amount1Out:   amounts[3],
			LogIndex:     i,
		}
		if token0IsMain {
			swap.MainCurrency, swap.TargetToken = pool.Token0, pool.Token1
		} else {
			swap.MainCurrency, swap.TargetToken = pool.Token1, pool.Token0
		}
		swap.MainAsset, _ = e.pools.Token(swap.MainCurrency)
		swap.TargetAsset, _ = e.pools.Token(swap.TargetToken)

		out.Swaps = append(out.Swaps, swap)
	}

	return out
}

func decodeSwapAmounts(data []byte) ([4]*big.Int, error) {
	var amounts [4]*big.Int

	values, err := swapAmounts.Unpack(data)
	if err != nil {
		return amounts, apperror.New(apperror.CodeUndecodableSwapLog, apperror.WithCause(err))
	}
	if len(values) != 4 {
		return amounts, apperror.New(apperror.CodeUndecodableSwapLog,
			apperror.WithContext(fmt.Sprintf("decoded %d values", len(values))))
	}
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return amounts, apperror.New(apperror.CodeUndecodableSwapLog,
				apperror.WithContext(fmt.Sprintf("value %d is %T", i, v)))
		}
		amounts[i] = n
	}
	return amounts, nil
}
