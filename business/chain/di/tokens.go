// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/sandwich-bot/business/chain/app"
	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/di"
	"github.com/fd1az/sandwich-bot/internal/eventbus"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
	ChainReader  = di.NewToken[app.ChainReader]("chain.ChainReader")
	EventBus     = di.NewToken[*eventbus.Bus[domain.Event]]("chain.EventBus")
)

// Private dependency tokens - internal to chain module
var (
	BlockSubscriber   = di.NewToken[app.BlockSubscriber]("chain:blockSubscriber")
	PendingSubscriber = di.NewToken[app.PendingTxSubscriber]("chain:pendingSubscriber")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetChainReader(c di.ServiceRegistry) app.ChainReader {
	return di.GetToken(c, ChainReader)
}

func GetEventBus(c di.ServiceRegistry) *eventbus.Bus[domain.Event] {
	return di.GetToken(c, EventBus)
}

func GetBlockSubscriber(c di.ServiceRegistry) app.BlockSubscriber {
	return di.GetToken(c, BlockSubscriber)
}

func GetPendingSubscriber(c di.ServiceRegistry) app.PendingTxSubscriber {
	return di.GetToken(c, PendingSubscriber)
}
