// Package registry implements the pool and token registry context: factory
// scans, ERC20 metadata and the immutable snapshot the detector reads.
package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/sandwich-bot/business/registry/app"
	registryDI "github.com/fd1az/sandwich-bot/business/registry/di"
	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/business/registry/infra/ethereum"
	"github.com/fd1az/sandwich-bot/business/registry/infra/sqlite"
	"github.com/fd1az/sandwich-bot/internal/config"
	"github.com/fd1az/sandwich-bot/internal/di"
	"github.com/fd1az/sandwich-bot/internal/logger"
	"github.com/fd1az/sandwich-bot/internal/monolith"
)

// Module implements the registry bounded context.
type Module struct{}

// RegisterServices registers all registry services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, registryDI.PairSource, func(sr di.ServiceRegistry) app.PairSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		scanner, err := ethereum.NewPairScanner(sr.Get("ethClient").(*ethclient.Client), cfg.Registry.FactoryAddressHex(), log)
		if err != nil {
			panic("failed to create pair scanner: " + err.Error())
		}
		return scanner
	})

	di.RegisterToken(c, registryDI.TokenSource, func(sr di.ServiceRegistry) app.TokenSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		fetcher, err := ethereum.NewTokenFetcher(sr.Get("ethClient").(*ethclient.Client), cfg.Ethereum.ChainID, log)
		if err != nil {
			panic("failed to create token fetcher: " + err.Error())
		}
		return fetcher
	})

	di.RegisterToken(c, registryDI.Store, func(sr di.ServiceRegistry) app.Store {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Registry.CachePath == "" {
			return nil
		}
		store, err := sqlite.Open(context.Background(), cfg.Registry.CachePath, cfg.Ethereum.ChainID)
		if err != nil {
			log.Warn(context.Background(), "registry cache disabled", "path", cfg.Registry.CachePath, "error", err)
			return nil
		}
		return store
	})

	di.RegisterToken(c, registryDI.Loader, func(sr di.ServiceRegistry) *app.Loader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewLoader(
			app.LoaderConfig{
				ChainID: cfg.Ethereum.ChainID,
				MainCurrency: domain.MainCurrency{
					Address:     cfg.Sandwich.MainCurrencyHex(),
					BalanceSlot: cfg.Sandwich.MainCurrencyBalanceSlot,
				},
				StartBlock:       cfg.Registry.StartBlock,
				ChunkSize:        cfg.Registry.ChunkSize,
				ScanConcurrency:  cfg.Registry.ScanConcurrency,
				TokenConcurrency: cfg.Registry.TokenConcurrency,
			},
			registryDI.GetPairSource(sr),
			registryDI.GetTokenSource(sr),
			registryDI.GetStore(sr),
			log,
		)
	})

	return nil
}

// Startup has nothing to connect; the loader runs during strategy bootstrap.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "registry module started",
		"factory", mono.Config().Registry.FactoryAddress,
		"cache", mono.Config().Registry.CachePath)
	return nil
}

// Shutdown closes the registry cache.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	if closer, ok := registryDI.GetStore(mono.Services()).(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
