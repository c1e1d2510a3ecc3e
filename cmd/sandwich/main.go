// Package main is the entry point for the sandwich detector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/sandwich-bot/business/chain"
	chainDI "github.com/fd1az/sandwich-bot/business/chain/di"
	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/registry"
	"github.com/fd1az/sandwich-bot/business/sandwich"
	sandwichApp "github.com/fd1az/sandwich-bot/business/sandwich/app"
	sandwichDI "github.com/fd1az/sandwich-bot/business/sandwich/di"
	"github.com/fd1az/sandwich-bot/internal/apm"
	"github.com/fd1az/sandwich-bot/internal/config"
	"github.com/fd1az/sandwich-bot/internal/health"
	"github.com/fd1az/sandwich-bot/internal/logger"
	"github.com/fd1az/sandwich-bot/internal/metrics"
	"github.com/fd1az/sandwich-bot/internal/monolith"
	"github.com/fd1az/sandwich-bot/pkg/ui"
	"github.com/fd1az/sandwich-bot/pkg/ui/components"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const tuiRefreshInterval = 500 * time.Millisecond

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sandwich-bot %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// the dashboard owns the terminal
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting sandwich detector",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	stopTelemetry := setupTelemetry(ctx, cfg, log)
	defer stopTelemetry()

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer healthServer.Stop(context.Background())

	mono, err := monolith.New(ctx, cfg, log, healthServer)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// dependency order: the detector reads chain and registry services
	modules := []monolith.Module{
		&chain.Module{},
		&registry.Module{},
		&sandwich.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	defer func() {
		if err := mono.ShutdownModules(context.Background(), modules...); err != nil {
			log.Warn(context.Background(), "module shutdown failed", "error", err)
		}
	}()

	start := func(ctx context.Context) error {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
		if tuiMode {
			go watchTUI(ctx, mono)
		}
		return runDetector(ctx, mono, log)
	}

	if tuiMode {
		return runTUI(ctx, start)
	}
	return runCLI(ctx, start, log)
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	traceProvider := apm.NewTraceProvider(log, apm.Options{
		Provider:    apm.ParseProvider(cfg.Telemetry.TraceProvider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	})

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
			cfg.Telemetry.OTLPEndpoint,
			apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
			metrics.InsecureOtel,
		)))
	}
	meterProvider, err := metrics.NewMetricProvider(opts...)
	if err != nil {
		log.Warn(ctx, "metrics disabled", "error", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	promServer := metrics.NewPrometheusServer(log, metrics.WithPort(strconv.Itoa(port)))
	if err := promServer.Start(); err != nil {
		log.Warn(ctx, "failed to start prometheus server", "error", err)
		promServer = nil
	} else {
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if promServer != nil {
			_ = promServer.Stop(shutdownCtx)
		}
		if meterProvider != nil {
			_ = meterProvider.Shutdown(shutdownCtx)
		}
		_ = traceProvider.Stop()
	}
}

// runDetector feeds the bus from the node and runs the strategy until ctx is
// done or either side fails.
func runDetector(ctx context.Context, mono monolith.Monolith, log logger.LoggerInterface) error {
	sr := mono.Services()
	svc := chainDI.GetChainService(sr)
	bus := chainDI.GetEventBus(sr)
	strategy := sandwichDI.GetStrategy(sr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := svc.Run(gctx)
		if gctx.Err() == nil {
			// streams ended on their own: the strategy has nothing left to read
			log.Warn(gctx, "chain streams ended, closing event bus", "error", err)
			bus.Close()
		}
		return err
	})
	g.Go(func() error {
		return strategy.Run(gctx)
	})

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runCLI(ctx context.Context, start func(context.Context) error, log *logger.Logger) error {
	log.Info(ctx, "all modules registered, beginning detection")

	err := start(ctx)
	log.Info(context.Background(), "shutting down")
	return err
}

func runTUI(ctx context.Context, start func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done", Message: "Configuration loaded"})
		err := start(ctx)
		if err != nil && ctx.Err() == nil {
			// keep the dashboard up so the error stays visible
			ui.Send(ui.ErrorMsg{Error: err})
		}
		errCh <- err
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	return <-errCh
}

// watchTUI pushes connection states, the registry summary and totals to the dashboard.
func watchTUI(ctx context.Context, mono monolith.Monolith) {
	svc := chainDI.GetChainService(mono.Services())
	strategy := sandwichDI.GetStrategy(mono.Services())

	ticker := time.NewTicker(tuiRefreshInterval)
	defer ticker.Stop()

	registrySent := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sendConnection("Ethereum", svc.ConnectionState())
		sendConnection("Mempool", svc.MempoolState())

		snap := strategy.Snapshot()
		if snap != nil && !registrySent {
			ui.Send(ui.RegistryMsg{
				Pools:     snap.PoolCount(),
				MainPools: snap.MainPoolCount(),
				Tokens:    snap.TokenCount(),
				Head:      snap.Head(),
			})
			registrySent = true
		}
		ui.Send(ui.StatsMsg{Stats: dashboardStats(strategy)})
	}
}

func sendConnection(name string, state chainDomain.ConnectionState) {
	ui.Send(ui.ConnectionStatusMsg{
		Name:      name,
		Connected: state == chainDomain.StateConnected,
		State:     string(state),
	})
}

func dashboardStats(strategy *sandwichApp.Strategy) components.Stats {
	st := strategy.Stats()
	out := components.Stats{
		Blocks:      st.Blocks,
		Pending:     st.Pending,
		Failed:      st.Failed,
		SwapTxs:     st.SwapTxs,
		Swaps:       st.Swaps,
		Undecodable: st.Undecodable,
		Lagged:      st.Lagged,
	}
	if snap := strategy.Snapshot(); snap != nil {
		out.Pools = snap.PoolCount()
		out.Tokens = snap.TokenCount()
	}
	return out
}
