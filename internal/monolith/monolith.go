// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/sandwich-bot/internal/config"
	"github.com/fd1az/sandwich-bot/internal/di"
	"github.com/fd1az/sandwich-bot/internal/health"
	"github.com/fd1az/sandwich-bot/internal/httpclient"
	"github.com/fd1az/sandwich-bot/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	RPCClient() *rpc.Client
	EthClient() *ethclient.Client
	Health() *health.Server
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Stopper is implemented by modules holding resources to release on exit.
type Stopper interface {
	Shutdown(context.Context, Monolith) error
}

type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	health    *health.Server
	container di.Container
}

// New dials the node's HTTP endpoint and registers the shared services.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hs *health.Server) (*app, error) {
	httpClient, err := httpclient.New(
		httpclient.WithProviderName("ethereum-node"),
		httpclient.WithRequestTimeout(cfg.Ethereum.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.Ethereum.HTTPURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	ethClient := ethclient.NewClient(rpcClient)

	container := di.NewContainer()

	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("httpClient", httpClient)
	container.Register("rpcClient", rpcClient)
	container.Register("ethClient", ethClient)

	return &app{
		config:    cfg,
		logger:    log,
		rpcClient: rpcClient,
		ethClient: ethClient,
		health:    hs,
		container: container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) RPCClient() *rpc.Client {
	return a.rpcClient
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// ShutdownModules stops modules in reverse start order.
func (a *app) ShutdownModules(ctx context.Context, modules ...Module) error {
	var errs []error
	for i := len(modules) - 1; i >= 0; i-- {
		if s, ok := modules[i].(Stopper); ok {
			if err := s.Shutdown(ctx, a); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes all resources.
func (a *app) Close() error {
	if a.rpcClient != nil {
		a.rpcClient.Close()
	}
	return nil
}
