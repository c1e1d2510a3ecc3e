package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/asset"
	"github.com/fd1az/sandwich-bot/pkg/ui"
	"github.com/fd1az/sandwich-bot/pkg/ui/components"
)

// TUIReporter forwards detections to the dashboard.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter sends to the running ui.Program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: ui.Send}
}

func (r *TUIReporter) Start(context.Context) error { return nil }

func (r *TUIReporter) ReportBlock(_ context.Context, block chainDomain.NewBlock) {
	r.send(ui.BlockMsg{
		Number:      block.Number,
		BaseFee:     chainDomain.Gwei(block.BaseFee),
		NextBaseFee: chainDomain.Gwei(block.NextBaseFee),
	})
}

func (r *TUIReporter) ReportSwaps(_ context.Context, info *domain.PendingTxInfo) {
	ts := info.DetectedAt.Format("15:04:05")
	for _, s := range info.TouchedPairs {
		r.send(ui.SwapMsg{Row: components.SwapRow{
			Time:         ts,
			BlockNumber:  info.BlockNumber,
			TxHash:       info.PendingTx.Hash.Hex(),
			Pair:         s.TargetPair.Hex(),
			Direction:    directionLabel(s.Direction),
			Token:        s.TargetSymbol(),
			MainAmount:   asset.FormatRaw(s.MainAsset, s.MainAmount(), 4),
			TargetAmount: asset.FormatRaw(s.TargetAsset, s.TargetAmount(), 4),
		}})
	}
}

func (r *TUIReporter) Stop() error { return nil }
