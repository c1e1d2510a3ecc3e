package domain

import (
	"time"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
)

// PendingTxInfo is the detection record for one pending transaction: the
// swaps it would perform against tracked pools if mined on top of BlockNumber.
type PendingTxInfo struct {
	PendingTx    *chainDomain.PendingTx
	BlockNumber  uint64
	TouchedPairs []SwapInfo
	DetectedAt   time.Time
	// SimulationTime covers nonce lookup and debug_traceCall.
	SimulationTime time.Duration
}

// HasSwaps reports whether any tracked pool was touched.
func (p *PendingTxInfo) HasSwaps() bool {
	return p != nil && len(p.TouchedPairs) > 0
}
