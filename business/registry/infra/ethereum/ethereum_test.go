package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

var (
	factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	token0  = common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	token1  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	pair    = common.HexToAddress("0xd3d2E2692501A5c9Ca623199D38826e513033a17")
)

// rpcError satisfies rpc.Error.
type rpcError struct{ msg string }

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return -32005 }

func pairCreatedLog(t *testing.T, block uint64, p common.Address) types.Log {
	t.Helper()
	data, err := factoryABI.Events["PairCreated"].Inputs.NonIndexed().Pack(p, big.NewInt(1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     factory,
		Topics:      []common.Hash{PairCreatedTopic, common.BytesToHash(token0.Bytes()), common.BytesToHash(token1.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func TestPairCreatedTopic(t *testing.T) {
	want := common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9")
	if PairCreatedTopic != want {
		t.Errorf("PairCreatedTopic = %s, want %s", PairCreatedTopic.Hex(), want.Hex())
	}
}

func TestDecodePairCreated(t *testing.T) {
	p, err := DecodePairCreated(pairCreatedLog(t, 10_008_355, pair))
	if err != nil {
		t.Fatalf("DecodePairCreated() error = %v", err)
	}

	want := domain.Pool{Address: pair, Token0: token0, Token1: token1, Version: domain.VersionV2, CreatedBlock: 10_008_355}
	if p != want {
		t.Errorf("DecodePairCreated() = %+v, want %+v", p, want)
	}

	bad := pairCreatedLog(t, 1, pair)
	bad.Topics = bad.Topics[:2]
	if _, err := DecodePairCreated(bad); err == nil {
		t.Error("expected error for missing indexed token")
	}
}

type fakeFilterer struct {
	mu       sync.Mutex
	logs     []types.Log
	maxRange uint64
	calls    int
}

func (f *fakeFilterer) BlockNumber(context.Context) (uint64, error) { return 1_000, nil }

func (f *fakeFilterer) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	if f.maxRange > 0 && to-from+1 > f.maxRange {
		return nil, rpcError{"query returned more than 10000 results"}
	}
	var out []types.Log
	for _, lg := range f.logs {
		if lg.BlockNumber >= from && lg.BlockNumber <= to {
			out = append(out, lg)
		}
	}
	return out, nil
}

func TestPairScanner_SplitsRejectedRanges(t *testing.T) {
	pairs := []common.Address{
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), common.HexToAddress("0x03"),
	}
	removed := pairCreatedLog(t, 300, common.HexToAddress("0x04"))
	removed.Removed = true

	client := &fakeFilterer{
		maxRange: 30,
		logs: []types.Log{
			pairCreatedLog(t, 100, pairs[0]),
			pairCreatedLog(t, 150, pairs[1]),
			pairCreatedLog(t, 199, pairs[2]),
			removed,
		},
	}

	s, err := NewPairScanner(client, factory, logger.NewNop())
	if err != nil {
		t.Fatalf("NewPairScanner() error = %v", err)
	}

	got, err := s.ScanPairs(context.Background(), 100, 300)
	if err != nil {
		t.Fatalf("ScanPairs() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d pools, want 3", len(got))
	}
	for i, p := range got {
		if p.Address != pairs[i] {
			t.Errorf("pool %d = %s, want %s (block order)", i, p.Address.Hex(), pairs[i].Hex())
		}
	}
	if client.calls < 8 {
		t.Errorf("expected range bisection, only %d calls", client.calls)
	}
}

func TestPairScanner_TransportErrorNotSplit(t *testing.T) {
	client := &errFilterer{err: errors.New("connection refused")}
	s, _ := NewPairScanner(client, factory, logger.NewNop())

	if _, err := s.ScanPairs(context.Background(), 0, 100); err == nil {
		t.Fatal("expected error")
	}
	if client.calls != 1 {
		t.Errorf("transport errors should not be bisected, got %d calls", client.calls)
	}
}

type errFilterer struct {
	err   error
	calls int
}

func (f *errFilterer) BlockNumber(context.Context) (uint64, error) { return 0, f.err }
func (f *errFilterer) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	f.calls++
	return nil, f.err
}

type fakeCaller struct {
	results map[string][]byte
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	for name, method := range erc20ABI.Methods {
		if string(msg.Data[:4]) == string(method.ID) {
			if out, ok := f.results[name]; ok {
				return out, nil
			}
			return nil, rpcError{"execution reverted"}
		}
	}
	return nil, errors.New("unknown selector")
}

func packOut(t *testing.T, def abi.ABI, method string, v any) []byte {
	t.Helper()
	out, err := def.Methods[method].Outputs.Pack(v)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return out
}

func TestTokenFetcher_FetchToken(t *testing.T) {
	var mkr [32]byte
	copy(mkr[:], "MKR")

	tests := []struct {
		name       string
		results    map[string][]byte
		wantSymbol string
		wantName   string
		wantDec    uint8
		wantErr    bool
	}{
		{
			name: "string metadata",
			results: map[string][]byte{
				"symbol":   packOut(t, erc20ABI, "symbol", "UNI"),
				"name":     packOut(t, erc20ABI, "name", "Uniswap"),
				"decimals": packOut(t, erc20ABI, "decimals", uint8(18)),
			},
			wantSymbol: "UNI", wantName: "Uniswap", wantDec: 18,
		},
		{
			name: "bytes32 fallback",
			results: map[string][]byte{
				"symbol":   packOut(t, erc20Bytes32ABI, "symbol", mkr),
				"decimals": packOut(t, erc20ABI, "decimals", uint8(18)),
			},
			wantSymbol: "MKR", wantName: "MKR", wantDec: 18,
		},
		{
			name: "missing decimals",
			results: map[string][]byte{
				"symbol": packOut(t, erc20ABI, "symbol", "NODEC"),
			},
			wantErr: true,
		},
		{
			name: "empty symbol",
			results: map[string][]byte{
				"symbol":   packOut(t, erc20ABI, "symbol", "\x00\x01"),
				"decimals": packOut(t, erc20ABI, "decimals", uint8(6)),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTokenFetcher(&fakeCaller{results: tt.results}, 1, logger.NewNop())
			if err != nil {
				t.Fatalf("NewTokenFetcher() error = %v", err)
			}

			a, err := f.FetchToken(context.Background(), token0)
			if tt.wantErr {
				if !apperror.HasCode(err, apperror.CodeTokenMetadataUnavailable) {
					t.Fatalf("expected TOKEN_METADATA_UNAVAILABLE, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchToken() error = %v", err)
			}
			if a.Symbol() != tt.wantSymbol || a.Name() != tt.wantName || a.Decimals() != tt.wantDec {
				t.Errorf("got %s/%s/%d, want %s/%s/%d",
					a.Symbol(), a.Name(), a.Decimals(), tt.wantSymbol, tt.wantName, tt.wantDec)
			}
			if a.Address() != token0 {
				t.Errorf("Address() = %s", a.Address().Hex())
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize(" W\x00ETH\n\xff "); got != "WETH" {
		t.Errorf("sanitize() = %q, want WETH", got)
	}
}
