// Package chain implements the chain bounded context: block and mempool
// streams, point-in-time node queries and the event bus they feed.
package chain

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/sandwich-bot/business/chain/app"
	chainDI "github.com/fd1az/sandwich-bot/business/chain/di"
	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/chain/infra/ethereum"
	"github.com/fd1az/sandwich-bot/internal/config"
	"github.com/fd1az/sandwich-bot/internal/di"
	"github.com/fd1az/sandwich-bot/internal/eventbus"
	"github.com/fd1az/sandwich-bot/internal/logger"
	"github.com/fd1az/sandwich-bot/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.EventBus, func(sr di.ServiceRegistry) *eventbus.Bus[domain.Event] {
		cfg := sr.Get("config").(*config.Config)
		return eventbus.New[domain.Event](cfg.EventBus.Capacity)
	})

	di.RegisterToken(c, chainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		subCfg.HTTPClient = sr.Get("httpClient").(*http.Client)
		subCfg.PollInterval = cfg.Ethereum.PollInterval
		subCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		subCfg.MaxBackoff = cfg.Ethereum.MaxBackoff
		subCfg.MaxReconnects = cfg.Ethereum.MaxReconnects

		sub, err := ethereum.NewBlockSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create block subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, chainDI.PendingSubscriber, func(sr di.ServiceRegistry) app.PendingTxSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		pendCfg := ethereum.DefaultPendingConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.ChainID)
		pendCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		pendCfg.MaxBackoff = cfg.Ethereum.MaxBackoff

		sub, err := ethereum.NewPendingSubscriber(pendCfg, log)
		if err != nil {
			panic("failed to create pending subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, chainDI.ChainReader, func(sr di.ServiceRegistry) app.ChainReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		readerCfg := ethereum.DefaultReaderConfig()
		readerCfg.RequestTimeout = cfg.Ethereum.RequestTimeout

		reader, err := ethereum.NewReader(sr.Get("rpcClient").(*rpc.Client), readerCfg, log)
		if err != nil {
			panic("failed to create chain reader: " + err.Error())
		}
		return reader
	})

	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewChainService(
			chainDI.GetBlockSubscriber(sr),
			chainDI.GetPendingSubscriber(sr),
			chainDI.GetEventBus(sr),
			log,
		)
	})

	return nil
}

// Startup connects the block subscriber and registers health checks.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	sub := chainDI.GetBlockSubscriber(mono.Services())
	if connector, ok := sub.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect block subscriber", "error", err)
			// Subscribe retries the dial
		}
	}

	svc := chainDI.GetChainService(mono.Services())
	mono.Health().RegisterCheck("chain.blocks", func(context.Context) (bool, string) {
		state := svc.ConnectionState()
		return state == domain.StateConnected, string(state)
	})
	mono.Health().RegisterCheck("chain.mempool", func(context.Context) (bool, string) {
		state := svc.MempoolState()
		return state == domain.StateConnected, string(state)
	})

	log.Info(ctx, "chain module started")
	return nil
}

// Shutdown releases node connections.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	for _, svc := range []any{
		chainDI.GetBlockSubscriber(sr),
		chainDI.GetPendingSubscriber(sr),
		chainDI.GetChainReader(sr),
	} {
		if closer, ok := svc.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				mono.Logger().Warn(ctx, "close failed", "error", err)
			}
		}
	}
	chainDI.GetEventBus(sr).Close()
	return nil
}
