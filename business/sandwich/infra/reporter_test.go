package infra

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/infra/postgres"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/internal/logger"
	"github.com/fd1az/sandwich-bot/pkg/ui"
)

var (
	pairAddr  = common.HexToAddress("0x0000000000000000000000000000000000001001")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token     = asset.MustNewToken(1, tokenAddr, "TKA", "Token A", 18)
	weth      = asset.MustNewToken(1, asset.AddrWETHEthereum, "WETH", "Wrapped Ether", 18)
)

func testInfo(hash byte) *domain.PendingTxInfo {
	to := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return &domain.PendingTxInfo{
		PendingTx: &chainDomain.PendingTx{
			Hash:      common.BytesToHash([]byte{hash}),
			From:      common.HexToAddress("0x00000000000000000000000000000000000000ee"),
			To:        &to,
			Type:      2,
			GasFeeCap: big.NewInt(30_000_000_000),
			GasTipCap: big.NewInt(1_000_000_000),
		},
		BlockNumber: 101,
		TouchedPairs: []domain.SwapInfo{{
			TargetPair:   pairAddr,
			MainCurrency: asset.AddrWETHEthereum,
			TargetToken:  tokenAddr,
			Version:      2,
			Token0IsMain: true,
			Direction:    domain.Buy,
			Amount0In:    oneEth,
			Amount1In:    big.NewInt(0),
			Amount0Out:   big.NewInt(0),
			Amount1Out:   new(big.Int).Mul(big.NewInt(2500), oneEth),
			MainAsset:    weth,
			TargetAsset:  token,
		}},
		DetectedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SimulationTime: 12 * time.Millisecond,
	}
}

func testBlock() chainDomain.NewBlock {
	return chainDomain.NewBlock{
		Number:      101,
		BaseFee:     big.NewInt(20_000_000_000),
		NextBaseFee: big.NewInt(22_500_000_000),
	}
}

func TestConsoleReporterSwap(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)

	r.ReportSwaps(context.Background(), testInfo(1))
	out := buf.String()

	for _, want := range []string{
		"PENDING SWAP DETECTED",
		testInfo(1).PendingTx.Hash.Hex(),
		"#101",
		"Fee cap:        30.000 gwei (tip 1.000 gwei)",
		"SWAP 1/1  BUY TKA",
		pairAddr.Hex(),
		"1.000000 WETH",
		"2500.000000 TKA",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestConsoleReporterBlock(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)

	r.ReportBlock(context.Background(), testBlock())
	if !strings.Contains(buf.String(), "block #101  base fee 20.000 gwei  next 22.500 gwei") {
		t.Errorf("unexpected block line: %q", buf.String())
	}
}

func TestFormatAmountWithoutAsset(t *testing.T) {
	if got := formatAmount(nil, big.NewInt(42)); got != "42 (raw)" {
		t.Errorf("formatAmount = %q", got)
	}
}

func TestTUIReporter(t *testing.T) {
	var msgs []tea.Msg
	r := &TUIReporter{send: func(m tea.Msg) { msgs = append(msgs, m) }}

	r.ReportBlock(context.Background(), testBlock())
	r.ReportSwaps(context.Background(), testInfo(1))

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	b, ok := msgs[0].(ui.BlockMsg)
	if !ok || b.Number != 101 || b.NextBaseFee.String() != "22.5" {
		t.Errorf("unexpected block msg: %#v", msgs[0])
	}
	s, ok := msgs[1].(ui.SwapMsg)
	if !ok {
		t.Fatalf("want SwapMsg, got %T", msgs[1])
	}
	if s.Row.Direction != "BUY" || s.Row.Token != "TKA" || s.Row.Time != "03:04:05" {
		t.Errorf("unexpected row: %+v", s.Row)
	}
	if s.Row.MainAmount != "1.0000 WETH" || s.Row.TargetAmount != "2500.0000 TKA" {
		t.Errorf("unexpected amounts: %s / %s", s.Row.MainAmount, s.Row.TargetAmount)
	}
}

type recorder struct {
	name     string
	calls    *[]string
	startErr error
}

func (r *recorder) Start(context.Context) error {
	*r.calls = append(*r.calls, r.name+".start")
	return r.startErr
}
func (r *recorder) ReportBlock(context.Context, chainDomain.NewBlock) {
	*r.calls = append(*r.calls, r.name+".block")
}
func (r *recorder) ReportSwaps(context.Context, *domain.PendingTxInfo) {
	*r.calls = append(*r.calls, r.name+".swaps")
}
func (r *recorder) Stop() error {
	*r.calls = append(*r.calls, r.name+".stop")
	return nil
}

func TestMultiReporterFanOut(t *testing.T) {
	var calls []string
	m := NewMultiReporter(&recorder{name: "a", calls: &calls}, nil, &recorder{name: "b", calls: &calls})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	m.ReportBlock(ctx, testBlock())
	m.ReportSwaps(ctx, testInfo(1))
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}

	want := "a.start b.start a.block b.block a.swaps b.swaps b.stop a.stop"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestMultiReporterStartFailureStopsStarted(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := NewMultiReporter(
		&recorder{name: "a", calls: &calls},
		&recorder{name: "b", calls: &calls, startErr: boom},
		&recorder{name: "c", calls: &calls},
	)

	if err := m.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	want := "a.start b.start a.stop"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

type fakeStore struct {
	mu    sync.Mutex
	saved []common.Hash
	err   error
	block chan struct{}
}

func (f *fakeStore) SaveDetection(_ context.Context, info *domain.PendingTxInfo) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, info.PendingTx.Hash)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestStoreReporterDrainsOnStop(t *testing.T) {
	store := &fakeStore{}
	r := NewStoreReporter(store, 8, logger.NewNop())
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		r.ReportSwaps(ctx, testInfo(byte(i)))
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if store.count() != 5 {
		t.Errorf("saved %d, want 5", store.count())
	}

	// reports after stop are ignored
	r.ReportSwaps(ctx, testInfo(9))
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreReporterDropsWhenFull(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	r := NewStoreReporter(store, 1, logger.NewNop())
	ctx := context.Background()

	// worker not started: the queue holds exactly one
	r.ReportSwaps(ctx, testInfo(1))
	r.ReportSwaps(ctx, testInfo(2))

	close(store.block)
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if store.count() != 1 {
		t.Errorf("saved %d, want 1", store.count())
	}
}

func TestStoreReporterToleratesErrors(t *testing.T) {
	store := &fakeStore{err: postgres.ErrDuplicateDetection}
	r := NewStoreReporter(store, 4, logger.NewNop())
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	r.ReportSwaps(ctx, testInfo(1))
	store.mu.Lock()
	store.err = errors.New("connection reset")
	store.mu.Unlock()
	r.ReportSwaps(ctx, testInfo(2))
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
}
