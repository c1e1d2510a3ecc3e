package app

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	registryDomain "github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/asset"
)

var (
	weth     = asset.AddrWETHEthereum
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	wethPool = common.HexToAddress("0x0000000000000000000000000000000000001001")
	abPool   = common.HexToAddress("0x0000000000000000000000000000000000001002")
	swapper  = common.HexToAddress("0x0000000000000000000000000000000000005555")
)

// testSnapshot tracks WETH/tokenA (WETH as token0) and tokenA/tokenB.
func testSnapshot() *registryDomain.Snapshot {
	tokens := []*asset.Asset{
		asset.WETH,
		asset.MustNewToken(asset.ChainIDEthereum, tokenA, "TKA", "Token A", 18),
		asset.MustNewToken(asset.ChainIDEthereum, tokenB, "TKB", "Token B", 6),
	}
	pools := []registryDomain.Pool{
		{Address: wethPool, Token0: weth, Token1: tokenA, Version: registryDomain.VersionV2},
		{Address: abPool, Token0: tokenA, Token1: tokenB, Version: registryDomain.VersionV2},
	}
	return registryDomain.NewSnapshot(registryDomain.MainCurrency{Address: weth, BalanceSlot: 3}, pools, tokens, 100)
}

func swapData(t *testing.T, a0In, a1In, a0Out, a1Out int64) []byte {
	t.Helper()
	data, err := swapAmounts.Pack(big.NewInt(a0In), big.NewInt(a1In), big.NewInt(a0Out), big.NewInt(a1Out))
	if err != nil {
		t.Fatalf("pack swap data: %v", err)
	}
	return data
}

func swapLog(t *testing.T, pool common.Address, a0In, a1In, a0Out, a1Out int64) chainDomain.CallLog {
	t.Helper()
	return chainDomain.CallLog{
		Address: pool,
		Topics: []common.Hash{
			domain.V2SwapTopic,
			common.BytesToHash(swapper.Bytes()),
			common.BytesToHash(swapper.Bytes()),
		},
		Data: swapData(t, a0In, a1In, a0Out, a1Out),
	}
}

func pendingTx(n byte) *chainDomain.PendingTx {
	to := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	return &chainDomain.PendingTx{
		Hash:  common.BytesToHash([]byte{n}),
		From:  swapper,
		To:    &to,
		Nonce: 1,
		Value: new(big.Int),
		Gas:   200_000,
	}
}
