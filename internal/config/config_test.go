package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WSS_URL", "ws://localhost:8546")
	t.Setenv("HTTPS_URL", "http://localhost:8545")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.EventBus.Capacity != 512 {
		t.Errorf("eventbus.capacity = %d, want 512", cfg.EventBus.Capacity)
	}
	if cfg.Registry.StartBlock != 10_000_000 || cfg.Registry.ChunkSize != 50_000 {
		t.Errorf("registry range = %d/%d", cfg.Registry.StartBlock, cfg.Registry.ChunkSize)
	}
	if cfg.Sandwich.MainCurrencyBalanceSlot != 3 {
		t.Errorf("balance slot = %d, want 3", cfg.Sandwich.MainCurrencyBalanceSlot)
	}
	if cfg.Sandwich.MaxConcurrentSimulations != 1 {
		t.Errorf("max concurrent simulations = %d, want 1", cfg.Sandwich.MaxConcurrentSimulations)
	}
	if cfg.Sandwich.NonceCacheTTL != 15*time.Second {
		t.Errorf("nonce cache ttl = %s", cfg.Sandwich.NonceCacheTTL)
	}
	if got := cfg.Sandwich.MainCurrencyHex().Hex(); got != "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2" {
		t.Errorf("main currency = %s", got)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "sandwich.yaml")
	body := `
ethereum:
  websocket_url: ws://node:8546
  http_url: http://node:8545
eventbus:
  capacity: 64
sandwich:
  max_concurrent_simulations: 8
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EventBus.Capacity != 64 {
		t.Errorf("capacity = %d, want 64", cfg.EventBus.Capacity)
	}
	if cfg.Sandwich.MaxConcurrentSimulations != 8 {
		t.Errorf("max concurrent simulations = %d, want 8", cfg.Sandwich.MaxConcurrentSimulations)
	}
}

func TestLoadRequiresEndpoints(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WSS_URL", "")
	t.Setenv("HTTPS_URL", "")
	t.Setenv("SANDO_WSS_URL", "")
	t.Setenv("SANDO_HTTPS_URL", "")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "websocket_url") {
		t.Fatalf("err = %v, want websocket_url validation error", err)
	}
}
