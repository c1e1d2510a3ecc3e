package infra

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"
	"time"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/asset"
)

const rule = "================================================================================"

// ConsoleReporter prints detections for CLI mode.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter writes to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo writes to out.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

func (r *ConsoleReporter) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Sandwich Detector Started")
	fmt.Fprintln(r.out, "=========================")
	return nil
}

func (r *ConsoleReporter) ReportBlock(_ context.Context, block chainDomain.NewBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] block #%d  base fee %s gwei  next %s gwei\n",
		time.Now().Format("15:04:05"),
		block.Number,
		chainDomain.Gwei(block.BaseFee).StringFixed(3),
		chainDomain.Gwei(block.NextBaseFee).StringFixed(3))
}

func (r *ConsoleReporter) ReportSwaps(_ context.Context, info *domain.PendingTxInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := info.PendingTx
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "PENDING SWAP DETECTED")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Tx:             %s\n", tx.Hash.Hex())
	fmt.Fprintf(r.out, "From:           %s\n", tx.From.Hex())
	if tx.To != nil {
		fmt.Fprintf(r.out, "To:             %s\n", tx.To.Hex())
	}
	fmt.Fprintf(r.out, "Simulated on:   #%d (%s)\n", info.BlockNumber, info.SimulationTime.Round(time.Millisecond))
	if tx.IsDynamicFee() {
		fmt.Fprintf(r.out, "Fee cap:        %s gwei (tip %s gwei)\n",
			chainDomain.Gwei(tx.GasFeeCap).StringFixed(3), chainDomain.Gwei(tx.GasTipCap).StringFixed(3))
	} else {
		fmt.Fprintf(r.out, "Gas price:      %s gwei\n", chainDomain.Gwei(tx.GasPrice).StringFixed(3))
	}

	for i, s := range info.TouchedPairs {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintf(r.out, "SWAP %d/%d  %s %s\n", i+1, len(info.TouchedPairs), directionLabel(s.Direction), s.TargetSymbol())
		fmt.Fprintf(r.out, "  Pair:         %s (v%d)\n", s.TargetPair.Hex(), s.Version)
		fmt.Fprintf(r.out, "  Token:        %s\n", s.TargetToken.Hex())
		fmt.Fprintf(r.out, "  Main amount:  %s\n", formatAmount(s.MainAsset, s.MainAmount()))
		fmt.Fprintf(r.out, "  Token amount: %s\n", formatAmount(s.TargetAsset, s.TargetAmount()))
	}
	fmt.Fprintln(r.out, rule)
}

func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Sandwich Detector Stopped")
	return nil
}

func directionLabel(d domain.SwapDirection) string {
	if d == domain.Buy {
		return "BUY"
	}
	return "SELL"
}

func formatAmount(a *asset.Asset, raw *big.Int) string {
	if a == nil {
		return raw.String() + " (raw)"
	}
	return asset.FormatRaw(a, raw, 6)
}
