// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SwapRow is one detected swap, pre-formatted for display.
type SwapRow struct {
	Time         string
	BlockNumber  uint64
	TxHash       string
	Pair         string
	Direction    string
	Token        string
	MainAmount   string
	TargetAmount string
}

// SwapsComponent renders the detected swap feed, newest first.
type SwapsComponent struct {
	rows    []SwapRow
	maxRows int
	visible int
	offset  int
}

// NewSwapsComponent keeps up to maxRows rows and shows visible of them at once.
func NewSwapsComponent(maxRows, visible int) *SwapsComponent {
	return &SwapsComponent{
		rows:    make([]SwapRow, 0, maxRows),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add prepends row, dropping the oldest beyond maxRows.
func (s *SwapsComponent) Add(row SwapRow) {
	s.rows = append([]SwapRow{row}, s.rows...)
	if len(s.rows) > s.maxRows {
		s.rows = s.rows[:s.maxRows]
	}
	if s.offset > 0 {
		// keep the rows the user scrolled to in place
		s.offset = min(s.offset+1, s.maxOffset())
	}
}

// Clear drops every row.
func (s *SwapsComponent) Clear() {
	s.rows = s.rows[:0]
	s.offset = 0
}

// Len returns the number of rows held.
func (s *SwapsComponent) Len() int {
	return len(s.rows)
}

// ScrollUp moves the window towards newer rows.
func (s *SwapsComponent) ScrollUp() {
	if s.offset > 0 {
		s.offset--
	}
}

// ScrollDown moves the window towards older rows.
func (s *SwapsComponent) ScrollDown() {
	if s.offset < s.maxOffset() {
		s.offset++
	}
}

func (s *SwapsComponent) maxOffset() int {
	return max(len(s.rows)-s.visible, 0)
}

// View renders the swap table.
func (s *SwapsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	buyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	sellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("DETECTED SWAPS (%d)", len(s.rows))))
	b.WriteString("\n\n")

	if len(s.rows) == 0 {
		b.WriteString(dimStyle.Render("  No swaps detected yet..."))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-8s  %-9s  %-12s  %-4s  %-10s  %16s  %16s\n",
		"Time", "Block", "Tx", "Side", "Token", "Main", "Token amt"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 87)) + "\n")

	end := min(s.offset+s.visible, len(s.rows))
	for _, row := range s.rows[s.offset:end] {
		side := buyStyle.Render(fmt.Sprintf("%-4s", row.Direction))
		if row.Direction != "BUY" {
			side = sellStyle.Render(fmt.Sprintf("%-4s", row.Direction))
		}
		b.WriteString(fmt.Sprintf("  %-8s  %-9d  %-12s  %s  %-10s  %16s  %16s\n",
			row.Time,
			row.BlockNumber,
			shorten(row.TxHash, 12),
			side,
			shorten(row.Token, 10),
			row.MainAmount,
			row.TargetAmount,
		))
	}

	if len(s.rows) > s.visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  showing %d-%d of %d", s.offset+1, end, len(s.rows))))
	}
	return b.String()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
