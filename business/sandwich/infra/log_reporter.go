package infra

import (
	"context"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// LogReporter writes one structured record per detection.
type LogReporter struct {
	logger logger.LoggerInterface
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log logger.LoggerInterface) *LogReporter {
	return &LogReporter{logger: log}
}

func (r *LogReporter) Start(context.Context) error { return nil }

func (r *LogReporter) ReportBlock(ctx context.Context, block chainDomain.NewBlock) {
	r.logger.Info(ctx, "block context",
		"block", block.Number,
		"base_fee_gwei", chainDomain.Gwei(block.BaseFee).String(),
		"next_base_fee_gwei", chainDomain.Gwei(block.NextBaseFee).String())
}

func (r *LogReporter) ReportSwaps(ctx context.Context, info *domain.PendingTxInfo) {
	pairs := make([]string, 0, len(info.TouchedPairs))
	for _, s := range info.TouchedPairs {
		pairs = append(pairs, s.TargetPair.Hex())
	}
	r.logger.Info(ctx, "pending transaction touches tracked pools",
		"tx", info.PendingTx.Hash.Hex(),
		"from", info.PendingTx.From.Hex(),
		"block", info.BlockNumber,
		"swaps", len(info.TouchedPairs),
		"pairs", pairs,
		"simulation_ms", info.SimulationTime.Milliseconds())
}

func (r *LogReporter) Stop() error { return nil }
