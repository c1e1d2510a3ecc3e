package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/eventbus"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

type strategyHarness struct {
	bus      *eventbus.Bus[chainDomain.Event]
	reader   *fakeReader
	sim      *fakeSimulator
	reporter *recordingReporter
	strategy *Strategy
	done     chan error
	cancel   context.CancelFunc
}

func startStrategy(t *testing.T, capacity, concurrency int, sim *fakeSimulator) *strategyHarness {
	t.Helper()

	h := &strategyHarness{
		bus: eventbus.New[chainDomain.Event](capacity),
		reader: &fakeReader{latest: &chainDomain.Block{
			Number:   100,
			GasLimit: 30_000_000,
			GasUsed:  15_000_000,
			BaseFee:  big.NewInt(1_000_000_000),
		}},
		sim:      sim,
		reporter: newRecordingReporter(),
		done:     make(chan error, 1),
	}

	s, err := NewStrategy(
		StrategyConfig{MaxConcurrentSimulations: concurrency},
		&fakeLoader{snap: testSnapshot()},
		h.reader,
		h.bus,
		h.sim,
		h.reporter,
		logger.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	h.strategy = s

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	h.cancel = cancel
	t.Cleanup(cancel)

	go func() { h.done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for s.State() != StateRunning {
		select {
		case err := <-h.done:
			t.Fatalf("Run returned before running: %v", err)
		case <-deadline:
			t.Fatalf("strategy state = %s, want running", s.State())
		case <-time.After(time.Millisecond):
		}
	}
	return h
}

func (h *strategyHarness) publish(t *testing.T, ev chainDomain.Event) {
	t.Helper()
	if err := h.bus.Publish(ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func (h *strategyHarness) nextSwaps(t *testing.T) *domain.PendingTxInfo {
	t.Helper()
	select {
	case info := <-h.reporter.swaps:
		return info
	case <-time.After(2 * time.Second):
		t.Fatal("no swaps reported")
		return nil
	}
}

func (h *strategyHarness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
		return nil
	}
}

func buyFrame(t *testing.T) *chainDomain.CallFrame {
	return &chainDomain.CallFrame{
		Type: "CALL",
		Calls: []chainDomain.CallFrame{
			{Type: "CALL", Logs: []chainDomain.CallLog{swapLog(t, wethPool, 5, 0, 0, 7)}},
		},
	}
}

func TestStrategyDetectsBuy(t *testing.T) {
	h := startStrategy(t, 512, 1, &fakeSimulator{frame: buyFrame(t)})

	if b, ok := h.strategy.BlockContext(); !ok || b.Number != 100 {
		t.Fatalf("initial block context = %+v, %v", b, ok)
	}
	if h.strategy.Snapshot().PoolCount() != 2 {
		t.Errorf("pools = %d, want 2", h.strategy.Snapshot().PoolCount())
	}

	h.publish(t, chainDomain.BlockEvent{Block: chainDomain.NewBlock{
		Number:      101,
		BaseFee:     big.NewInt(1_000_000_000),
		NextBaseFee: big.NewInt(1_000_000_000),
	}})
	tx := pendingTx(1)
	h.publish(t, chainDomain.PendingTxEvent{Tx: tx})

	info := h.nextSwaps(t)
	if info.PendingTx != tx {
		t.Errorf("PendingTx = %v, want %v", info.PendingTx, tx)
	}
	if info.BlockNumber != 101 {
		t.Errorf("BlockNumber = %d, want 101", info.BlockNumber)
	}
	if len(info.TouchedPairs) != 1 {
		t.Fatalf("TouchedPairs = %d, want 1", len(info.TouchedPairs))
	}
	swap := info.TouchedPairs[0]
	if swap.Direction != domain.Buy || swap.TargetPair != wethPool || swap.TargetToken != tokenA {
		t.Errorf("swap = %+v", swap)
	}

	select {
	case b := <-h.reporter.blocks:
		if b.Number != 101 {
			t.Errorf("reported block = %d, want 101", b.Number)
		}
	default:
		t.Error("block was not reported")
	}

	if got := h.sim.simulatedBlocks(); len(got) != 1 || got[0] != 101 {
		t.Errorf("simulated against %v, want [101]", got)
	}

	if err := h.stop(t); err != nil {
		t.Errorf("Run() = %v, want nil on cancel", err)
	}
	if h.strategy.State() != StateStopped {
		t.Errorf("state = %s, want stopped", h.strategy.State())
	}
	if !h.reporter.wasStopped() {
		t.Error("reporter was not stopped")
	}

	stats := h.strategy.Stats()
	if stats.Blocks != 1 || stats.Pending != 1 || stats.SwapTxs != 1 || stats.Swaps != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStrategySkipsFailedSimulations(t *testing.T) {
	failing := pendingTx(1)
	sim := &fakeSimulator{fn: func(_ context.Context, tx *chainDomain.PendingTx) (*chainDomain.CallFrame, error) {
		if tx == failing {
			return nil, apperror.New(apperror.CodeSimulationReverted)
		}
		return buyFrame(t), nil
	}}
	h := startStrategy(t, 512, 1, sim)

	h.publish(t, chainDomain.PendingTxEvent{Tx: failing})
	h.publish(t, chainDomain.PendingTxEvent{Tx: nil})
	ok := pendingTx(2)
	h.publish(t, chainDomain.PendingTxEvent{Tx: ok})

	if info := h.nextSwaps(t); info.PendingTx != ok {
		t.Errorf("reported %s, want %s", info.PendingTx.Hash.Hex(), ok.Hash.Hex())
	}

	if err := h.stop(t); err != nil {
		t.Errorf("Run() = %v", err)
	}
	stats := h.strategy.Stats()
	if stats.Failed != 1 || stats.Pending != 2 || stats.SwapTxs != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStrategyNoSwapsNotReported(t *testing.T) {
	sim := &fakeSimulator{fn: func(_ context.Context, tx *chainDomain.PendingTx) (*chainDomain.CallFrame, error) {
		if tx.Hash == pendingTx(1).Hash {
			return &chainDomain.CallFrame{Logs: []chainDomain.CallLog{swapLog(t, abPool, 5, 0, 0, 7)}}, nil
		}
		return buyFrame(t), nil
	}}
	h := startStrategy(t, 512, 1, sim)

	h.publish(t, chainDomain.PendingTxEvent{Tx: pendingTx(1)})
	h.publish(t, chainDomain.PendingTxEvent{Tx: pendingTx(2)})

	info := h.nextSwaps(t)
	if info.PendingTx.Hash != pendingTx(2).Hash {
		t.Errorf("reported %s, want only tx 2", info.PendingTx.Hash.Hex())
	}
	_ = h.stop(t)
}

func TestStrategyConcurrentSimulations(t *testing.T) {
	const n = 20

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	sim := &fakeSimulator{fn: func(_ context.Context, _ *chainDomain.PendingTx) (*chainDomain.CallFrame, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return buyFrame(t), nil
	}}
	h := startStrategy(t, 512, 4, sim)

	for i := 0; i < n; i++ {
		h.publish(t, chainDomain.PendingTxEvent{Tx: pendingTx(byte(i + 1))})
	}

	seen := make(map[byte]bool)
	for i := 0; i < n; i++ {
		info := h.nextSwaps(t)
		seen[info.PendingTx.Hash[31]] = true
	}
	if len(seen) != n {
		t.Errorf("distinct reports = %d, want %d", len(seen), n)
	}

	if err := h.stop(t); err != nil {
		t.Errorf("Run() = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", peak)
	}
}

func TestStrategyRecoversFromLag(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	first := pendingTx(1)

	sim := &fakeSimulator{fn: func(_ context.Context, tx *chainDomain.PendingTx) (*chainDomain.CallFrame, error) {
		if tx == first {
			close(started)
			<-release
		}
		return buyFrame(t), nil
	}}
	h := startStrategy(t, 4, 1, sim)

	h.publish(t, chainDomain.PendingTxEvent{Tx: first})
	<-started

	for i := 0; i < 10; i++ {
		h.publish(t, chainDomain.PendingTxEvent{Tx: pendingTx(byte(10 + i))})
	}
	close(release)

	if info := h.nextSwaps(t); info.PendingTx != first {
		t.Fatalf("first report = %s", info.PendingTx.Hash.Hex())
	}
	// the four retained events survive the lag
	for i := 0; i < 4; i++ {
		info := h.nextSwaps(t)
		if want := byte(16 + i); info.PendingTx.Hash[31] != want {
			t.Errorf("report %d = tx %d, want %d", i, info.PendingTx.Hash[31], want)
		}
	}

	if err := h.stop(t); err != nil {
		t.Errorf("Run() = %v", err)
	}
	if lagged := h.strategy.Stats().Lagged; lagged != 6 {
		t.Errorf("lagged = %d, want 6", lagged)
	}
}

func TestStrategyBusClosed(t *testing.T) {
	h := startStrategy(t, 16, 1, &fakeSimulator{frame: buyFrame(t)})

	h.publish(t, chainDomain.PendingTxEvent{Tx: pendingTx(1)})
	h.bus.Close()

	// retained events are still handled before the close surfaces
	h.nextSwaps(t)

	select {
	case err := <-h.done:
		if !apperror.HasCode(err, apperror.CodeEventBusClosed) {
			t.Errorf("Run() = %v, want EVENT_BUS_CLOSED", err)
		}
		if !apperror.IsFatal(err) {
			t.Error("EVENT_BUS_CLOSED must be fatal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after bus close")
	}
}

func TestStrategyBootstrapFailures(t *testing.T) {
	block := &chainDomain.Block{Number: 1, BaseFee: big.NewInt(1)}

	tests := []struct {
		name   string
		loader *fakeLoader
		reader *fakeReader
		want   apperror.Code
	}{
		{
			name:   "registry load fails",
			loader: &fakeLoader{err: errors.New("factory scan failed")},
			reader: &fakeReader{latest: block},
			want:   apperror.CodeRegistryBootstrapFailed,
		},
		{
			name:   "registry error keeps its code",
			loader: &fakeLoader{err: apperror.New(apperror.CodeRegistryBootstrapFailed, apperror.WithContext("main currency"))},
			reader: &fakeReader{latest: block},
			want:   apperror.CodeRegistryBootstrapFailed,
		},
		{
			name:   "latest block fails",
			loader: &fakeLoader{snap: testSnapshot()},
			reader: &fakeReader{latestErr: errors.New("dial tcp: refused")},
			want:   apperror.CodeBlockNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := eventbus.New[chainDomain.Event](4)
			rep := newRecordingReporter()
			s, err := NewStrategy(StrategyConfig{}, tt.loader, tt.reader, bus, &fakeSimulator{}, rep, logger.NewNop())
			if err != nil {
				t.Fatalf("NewStrategy: %v", err)
			}

			err = s.Run(context.Background())
			if !apperror.HasCode(err, tt.want) {
				t.Errorf("Run() = %v, want %s", err, tt.want)
			}
			if s.State() != StateStopped {
				t.Errorf("state = %s, want stopped", s.State())
			}
			if rep.started {
				t.Error("reporter started despite bootstrap failure")
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateBootstrapping: "bootstrapping",
		StateRunning:       "running",
		StateStopped:       "stopped",
		State(42):          "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
