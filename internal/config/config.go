// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	EventBus  EventBusConfig  `mapstructure:"eventbus"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Sandwich  SandwichConfig  `mapstructure:"sandwich"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime from flags
}

// EthereumConfig holds Ethereum node configuration. The HTTP endpoint must
// expose the debug namespace for debug_traceCall.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EventBusConfig sizes the broadcast ring shared by producers and strategies.
type EventBusConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// RegistryConfig controls the pool registry bootstrap.
type RegistryConfig struct {
	FactoryAddress   string `mapstructure:"factory_address"`
	StartBlock       uint64 `mapstructure:"start_block"`
	ChunkSize        uint64 `mapstructure:"chunk_size"`
	ScanConcurrency  int    `mapstructure:"scan_concurrency"`
	TokenConcurrency int    `mapstructure:"token_concurrency"`
	CachePath        string `mapstructure:"cache_path"`
}

// FactoryAddressHex returns the factory address as common.Address.
func (c *RegistryConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// SandwichConfig holds detection settings.
type SandwichConfig struct {
	MainCurrency             string        `mapstructure:"main_currency"`
	MainCurrencyBalanceSlot  uint64        `mapstructure:"main_currency_balance_slot"`
	MaxConcurrentSimulations int           `mapstructure:"max_concurrent_simulations"`
	SimulationsPerSecond     float64       `mapstructure:"simulations_per_second"`
	SimulationTimeout        time.Duration `mapstructure:"simulation_timeout"`
	NonceCacheTTL            time.Duration `mapstructure:"nonce_cache_ttl"`
}

// MainCurrencyHex returns the main currency token as common.Address.
func (c *SandwichConfig) MainCurrencyHex() common.Address {
	return common.HexToAddress(c.MainCurrency)
}

// StorageConfig holds optional persistence settings. An empty DSN disables the swap store.
type StorageConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SANDO")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "SANDO_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SANDO_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SANDO_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "SANDO_WSS_URL", "WSS_URL")
	v.BindEnv("ethereum.http_url", "SANDO_HTTPS_URL", "HTTPS_URL")
	v.BindEnv("ethereum.chain_id", "SANDO_CHAIN_ID", "CHAIN_ID")

	// Event bus
	v.BindEnv("eventbus.capacity", "SANDO_EVENT_BUS_CAPACITY")

	// Registry
	v.BindEnv("registry.factory_address", "SANDO_FACTORY_ADDRESS")
	v.BindEnv("registry.start_block", "SANDO_REGISTRY_START_BLOCK")
	v.BindEnv("registry.chunk_size", "SANDO_REGISTRY_CHUNK_SIZE")
	v.BindEnv("registry.cache_path", "SANDO_REGISTRY_CACHE_PATH")

	// Sandwich
	v.BindEnv("sandwich.main_currency", "SANDO_MAIN_CURRENCY")
	v.BindEnv("sandwich.main_currency_balance_slot", "SANDO_MAIN_CURRENCY_BALANCE_SLOT")
	v.BindEnv("sandwich.max_concurrent_simulations", "SANDO_MAX_CONCURRENT_SIMULATIONS")
	v.BindEnv("sandwich.simulations_per_second", "SANDO_SIMULATIONS_PER_SECOND")

	// Storage
	v.BindEnv("storage.postgres_dsn", "SANDO_POSTGRES_DSN", "DATABASE_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SANDO_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SANDO_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "SANDO_OTEL_TRACE_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "SANDO_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "SANDO_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sandwich-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.poll_interval", "12s")
	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("eventbus.capacity", 512)

	// Uniswap V2 mainnet factory
	v.SetDefault("registry.factory_address", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v.SetDefault("registry.start_block", 10_000_000)
	v.SetDefault("registry.chunk_size", 50_000)
	v.SetDefault("registry.scan_concurrency", 4)
	v.SetDefault("registry.token_concurrency", 16)
	v.SetDefault("registry.cache_path", "registry.db")

	// WETH, whose balanceOf mapping lives in storage slot 3
	v.SetDefault("sandwich.main_currency", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("sandwich.main_currency_balance_slot", 3)
	v.SetDefault("sandwich.max_concurrent_simulations", 1)
	v.SetDefault("sandwich.simulations_per_second", 0)
	v.SetDefault("sandwich.simulation_timeout", "5s")
	v.SetDefault("sandwich.nonce_cache_ttl", "15s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "sandwich-bot")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.WebSocketURL == "" {
		return fmt.Errorf("ethereum.websocket_url is required")
	}
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if c.EventBus.Capacity <= 0 {
		return fmt.Errorf("eventbus.capacity must be positive, got %d", c.EventBus.Capacity)
	}
	if !common.IsHexAddress(c.Registry.FactoryAddress) {
		return fmt.Errorf("invalid registry.factory_address: %s", c.Registry.FactoryAddress)
	}
	if c.Registry.ChunkSize == 0 {
		return fmt.Errorf("registry.chunk_size must be positive")
	}
	if !common.IsHexAddress(c.Sandwich.MainCurrency) {
		return fmt.Errorf("invalid sandwich.main_currency: %s", c.Sandwich.MainCurrency)
	}
	if c.Sandwich.MaxConcurrentSimulations < 1 {
		return fmt.Errorf("sandwich.max_concurrent_simulations must be at least 1, got %d", c.Sandwich.MaxConcurrentSimulations)
	}
	if c.Sandwich.SimulationsPerSecond < 0 {
		return fmt.Errorf("sandwich.simulations_per_second cannot be negative")
	}
	return nil
}
