package domain

// Event is published by the chain producers onto the event bus. The set of
// variants is closed: BlockEvent and PendingTxEvent.
type Event interface {
	isEvent()
}

// BlockEvent carries the block context derived from a newly confirmed block.
type BlockEvent struct {
	Block NewBlock
}

// PendingTxEvent carries a transaction observed in the public mempool.
type PendingTxEvent struct {
	Tx *PendingTx
}

func (BlockEvent) isEvent()     {}
func (PendingTxEvent) isEvent() {}
