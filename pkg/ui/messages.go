package ui

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/sandwich-bot/pkg/ui/components"
)

// SwapMsg is sent for every swap found in a simulated pending transaction.
type SwapMsg struct {
	Row components.SwapRow
}

// BlockMsg is sent when the block context advances. Fees are in gwei.
type BlockMsg struct {
	Number      uint64
	BaseFee     decimal.Decimal
	NextBaseFee decimal.Decimal
}

// StatsMsg carries detection totals.
type StatsMsg struct {
	Stats components.Stats
}

// RegistryMsg is sent once the pool registry is loaded.
type RegistryMsg struct {
	Pools     int
	MainPools int
	Tokens    int
	Head      uint64
}

// ConnectionStatusMsg is sent when an upstream connection changes state.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	State     string
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "ethereum", "registry", "mempool"
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}

// ErrorEntry is an error shown in the persistent error panel.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}
