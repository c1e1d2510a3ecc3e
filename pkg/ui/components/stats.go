package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds detection totals for display.
type Stats struct {
	Blocks      uint64
	Pending     uint64
	Failed      uint64
	SwapTxs     uint64
	Swaps       uint64
	Undecodable uint64
	Lagged      uint64
	Pools       int
	Tokens      int
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	hitRate := float64(0)
	if s.stats.Pending > 0 {
		hitRate = float64(s.stats.SwapTxs) / float64(s.stats.Pending) * 100
	}

	value := func(n uint64) string { return valueStyle.Render(fmt.Sprintf("%d", n)) }
	warn := func(n uint64) string {
		if n > 0 {
			return warnStyle.Render(fmt.Sprintf("%d", n))
		}
		return value(n)
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Pools: %s  │  Tokens: %s  │  Blocks: %s  │  Pending simulated: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Pools)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Tokens)),
			value(s.stats.Blocks),
			value(s.stats.Pending),
		) +
		fmt.Sprintf("Swap txs: %s (%.2f%%)  │  Swaps: %s  │  Failed: %s  │  Undecodable: %s  │  Lagged: %s",
			value(s.stats.SwapTxs),
			hitRate,
			value(s.stats.Swaps),
			value(s.stats.Failed),
			warn(s.stats.Undecodable),
			warn(s.stats.Lagged),
		)
}
