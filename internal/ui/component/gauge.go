package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/whaleshi/b/internal/ui/style"
)

var hundred = decimal.NewFromInt(100)

// ProgressGauge renders launch progress as a filled bar.
type ProgressGauge struct {
	value    decimal.Decimal // 0..100
	launched bool
	width    int
}

func NewProgressGauge(width int) *ProgressGauge {
	return &ProgressGauge{width: width}
}

func (g *ProgressGauge) SetValue(pct decimal.Decimal, launched bool) *ProgressGauge {
	g.value = pct
	g.launched = launched
	return g
}

func (g *ProgressGauge) SetWidth(width int) *ProgressGauge {
	g.width = width
	return g
}

// Filled returns how many cells are filled.
func (g *ProgressGauge) Filled() int {
	if g.width <= 0 {
		return 0
	}
	if g.launched {
		return g.width
	}
	v := g.value
	if v.IsNegative() {
		v = decimal.Zero
	}
	if v.GreaterThan(hundred) {
		v = hundred
	}
	filled := int(v.Mul(decimal.NewFromInt(int64(g.width))).Div(hundred).IntPart())
	// любой ненулевой прогресс виден
	if filled == 0 && v.IsPositive() {
		filled = 1
	}
	return filled
}

func (g *ProgressGauge) View() string {
	palette := style.DefaultPalette()
	color := palette.Bonding
	label := g.value.StringFixed(2) + "%"
	if g.launched {
		color = palette.Launched
		label = "launched"
	}

	filled := g.Filled()
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		style.MutedStyle.Render(strings.Repeat("░", g.width-filled))
	return bar + " " + lipgloss.NewStyle().Foreground(color).Bold(true).Render(label)
}
