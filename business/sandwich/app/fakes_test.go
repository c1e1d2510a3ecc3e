package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	registryDomain "github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
)

type fakeReader struct {
	mu sync.Mutex

	latest    *chainDomain.Block
	latestErr error

	nonce      uint64
	nonceErr   error
	nonceCalls int

	frame    *chainDomain.CallFrame
	traceErr error
	traced   []*chainDomain.PendingTx
	blocks   []uint64
}

func (f *fakeReader) LatestBlock(context.Context) (*chainDomain.Block, error) {
	return f.latest, f.latestErr
}

func (f *fakeReader) NonceAt(_ context.Context, _ common.Address, _ uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeReader) TraceCall(_ context.Context, tx *chainDomain.PendingTx, block uint64) (*chainDomain.CallFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traced = append(f.traced, tx)
	f.blocks = append(f.blocks, block)
	return f.frame, f.traceErr
}

type fakeLoader struct {
	snap *registryDomain.Snapshot
	err  error
}

func (f *fakeLoader) Load(context.Context) (*registryDomain.Snapshot, error) {
	return f.snap, f.err
}

// fakeSimulator answers with fn, or frame when fn is nil.
type fakeSimulator struct {
	mu     sync.Mutex
	frame  *chainDomain.CallFrame
	fn     func(ctx context.Context, tx *chainDomain.PendingTx) (*chainDomain.CallFrame, error)
	blocks []uint64
}

func (f *fakeSimulator) Simulate(ctx context.Context, tx *chainDomain.PendingTx, block chainDomain.NewBlock) (*chainDomain.CallFrame, error) {
	f.mu.Lock()
	f.blocks = append(f.blocks, block.Number)
	fn, frame := f.fn, f.frame
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, tx)
	}
	return frame, nil
}

func (f *fakeSimulator) simulatedBlocks() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.blocks...)
}

type recordingReporter struct {
	blocks  chan chainDomain.NewBlock
	swaps   chan *domain.PendingTxInfo
	mu      sync.Mutex
	started bool
	stopped bool
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{
		blocks: make(chan chainDomain.NewBlock, 64),
		swaps:  make(chan *domain.PendingTxInfo, 64),
	}
}

func (r *recordingReporter) Start(context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *recordingReporter) ReportBlock(_ context.Context, b chainDomain.NewBlock) {
	r.blocks <- b
}

func (r *recordingReporter) ReportSwaps(_ context.Context, info *domain.PendingTxInfo) {
	r.swaps <- info
}

func (r *recordingReporter) Stop() error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return nil
}

func (r *recordingReporter) wasStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
