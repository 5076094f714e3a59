package style

import (
	"github.com/charmbracelet/lipgloss"
)

var palette = DefaultPalette()

// Header styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(palette.TextMuted)
)

// Tabs
var (
	TabStyle = lipgloss.NewStyle().
			Foreground(palette.TextSecondary).
			Padding(0, 2)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(palette.Background).
			Background(palette.Primary).
			Bold(true).
			Padding(0, 2)
)

// Panels
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted).
			Padding(0, 1)

	ActivePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(palette.Primary).
				Padding(0, 1)
)

// Status styles
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(palette.Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(palette.Warning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(palette.Info)
)

// Trading styles
var (
	BuyStyle = lipgloss.NewStyle().
			Foreground(palette.Buy).
			Bold(true)

	SellStyle = lipgloss.NewStyle().
			Foreground(palette.Sell).
			Bold(true)

	BondingStyle = lipgloss.NewStyle().
			Foreground(palette.Bonding)

	LaunchedStyle = lipgloss.NewStyle().
			Foreground(palette.Launched).
			Bold(true)
)

// AdaptiveJoinHorizontal stacks panels vertically on narrow terminals.
func AdaptiveJoinHorizontal(width int, panels ...string) string {
	if width < 100 {
		return lipgloss.JoinVertical(lipgloss.Left, panels...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}
