// Package sandwich implements the detection context: it simulates pending
// transactions on the latest block and reports the V2 swaps they would make.
package sandwich

import (
	"context"
	"time"

	chainDI "github.com/fd1az/sandwich-bot/business/chain/di"
	registryDI "github.com/fd1az/sandwich-bot/business/registry/di"
	"github.com/fd1az/sandwich-bot/business/sandwich/app"
	sandwichDI "github.com/fd1az/sandwich-bot/business/sandwich/di"
	"github.com/fd1az/sandwich-bot/business/sandwich/infra"
	"github.com/fd1az/sandwich-bot/business/sandwich/infra/postgres"
	"github.com/fd1az/sandwich-bot/internal/config"
	"github.com/fd1az/sandwich-bot/internal/di"
	"github.com/fd1az/sandwich-bot/internal/logger"
	"github.com/fd1az/sandwich-bot/internal/monolith"
)

const storeConnectTimeout = 10 * time.Second

// Module implements the sandwich bounded context.
type Module struct{}

// RegisterServices registers all sandwich services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, sandwichDI.Simulator, func(sr di.ServiceRegistry) *app.TraceSimulator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		simCfg := app.DefaultSimulatorConfig()
		simCfg.SimulationsPerSecond = cfg.Sandwich.SimulationsPerSecond
		if cfg.Sandwich.SimulationTimeout > 0 {
			simCfg.Timeout = cfg.Sandwich.SimulationTimeout
		}
		if cfg.Sandwich.NonceCacheTTL > 0 {
			simCfg.NonceTTL = cfg.Sandwich.NonceCacheTTL
		}

		sim, err := app.NewTraceSimulator(chainDI.GetChainReader(sr), simCfg, log)
		if err != nil {
			panic("failed to create trace simulator: " + err.Error())
		}
		return sim
	})

	di.RegisterToken(c, sandwichDI.Store, func(sr di.ServiceRegistry) *postgres.Store {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Storage.PostgresDSN == "" {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
		defer cancel()

		store, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Warn(ctx, "swap store disabled", "error", err)
			return nil
		}
		return store
	})

	di.RegisterToken(c, sandwichDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		reporters := []app.Reporter{infra.NewLogReporter(log)}
		if cfg.App.TUIMode {
			reporters = append(reporters, infra.NewTUIReporter())
		} else {
			reporters = append(reporters, infra.NewConsoleReporter())
		}
		if store := sandwichDI.GetStore(sr); store != nil {
			reporters = append(reporters, infra.NewStoreReporter(store, 0, log))
		}
		return infra.NewMultiReporter(reporters...)
	})

	di.RegisterToken(c, sandwichDI.Strategy, func(sr di.ServiceRegistry) *app.Strategy {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		strategy, err := app.NewStrategy(
			app.StrategyConfig{MaxConcurrentSimulations: cfg.Sandwich.MaxConcurrentSimulations},
			registryDI.GetLoader(sr),
			chainDI.GetChainReader(sr),
			chainDI.GetEventBus(sr),
			sandwichDI.GetSimulator(sr),
			sandwichDI.GetReporter(sr),
			log,
		)
		if err != nil {
			panic("failed to create strategy: " + err.Error())
		}
		return strategy
	})

	return nil
}

// Startup registers the strategy health check.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	strategy := sandwichDI.GetStrategy(mono.Services())
	mono.Health().RegisterCheck("sandwich.strategy", func(context.Context) (bool, string) {
		state := strategy.State()
		return state == app.StateRunning, state.String()
	})

	cfg := mono.Config().Sandwich
	mono.Logger().Info(ctx, "sandwich module started",
		"main_currency", cfg.MainCurrency,
		"max_concurrent_simulations", cfg.MaxConcurrentSimulations,
		"simulations_per_second", cfg.SimulationsPerSecond,
		"swap_store", sandwichDI.GetStore(mono.Services()) != nil)
	return nil
}

// Shutdown releases the simulator cache and the swap store.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	if err := sandwichDI.GetSimulator(sr).Close(); err != nil {
		mono.Logger().Warn(ctx, "close simulator failed", "error", err)
	}
	if store := sandwichDI.GetStore(sr); store != nil {
		store.Close()
	}
	return nil
}
