package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// BlockRow is a confirmed block and its projected successor base fee, in gwei.
type BlockRow struct {
	Number      uint64
	BaseFee     decimal.Decimal
	NextBaseFee decimal.Decimal
}

// BlocksComponent renders recent block contexts, newest first.
type BlocksComponent struct {
	rows    []BlockRow
	maxRows int
}

// NewBlocksComponent keeps the last maxRows blocks.
func NewBlocksComponent(maxRows int) *BlocksComponent {
	return &BlocksComponent{
		rows:    make([]BlockRow, 0, maxRows),
		maxRows: maxRows,
	}
}

// Add prepends row.
func (c *BlocksComponent) Add(row BlockRow) {
	c.rows = append([]BlockRow{row}, c.rows...)
	if len(c.rows) > c.maxRows {
		c.rows = c.rows[:c.maxRows]
	}
}

// Latest returns the newest block.
func (c *BlocksComponent) Latest() (BlockRow, bool) {
	if len(c.rows) == 0 {
		return BlockRow{}, false
	}
	return c.rows[0], true
}

// View renders the block table.
func (c *BlocksComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	upStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("BLOCKS"))
	b.WriteString("\n\n")

	if len(c.rows) == 0 {
		b.WriteString(dimStyle.Render("  Waiting for blocks..."))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-10s  %14s  %14s  %8s\n", "Block", "Base fee", "Next", "Change"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 52)) + "\n")

	for _, row := range c.rows {
		change := "   0.0%"
		style := dimStyle
		if !row.BaseFee.IsZero() {
			pct := row.NextBaseFee.Sub(row.BaseFee).Div(row.BaseFee).Mul(decimal.NewFromInt(100))
			change = fmt.Sprintf("%+6.1f%%", pct.InexactFloat64())
			switch pct.Sign() {
			case 1:
				style = upStyle
			case -1:
				style = downStyle
			}
		}
		b.WriteString(fmt.Sprintf("  %-10d  %14s  %14s  %s\n",
			row.Number,
			row.BaseFee.StringFixed(3)+" gwei",
			row.NextBaseFee.StringFixed(3)+" gwei",
			style.Render(fmt.Sprintf("%8s", change)),
		))
	}
	return b.String()
}
