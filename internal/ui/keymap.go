package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts for the application
type KeyMap struct {
	// Global
	Quit       key.Binding
	Back       key.Binding
	ToggleLogs key.Binding

	// Directory
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Search  key.Binding
	Open    key.Binding

	// Trade panel
	Submit       key.Binding
	ToggleSide   key.Binding
	NextWallet   key.Binding
	Refresh      key.Binding
	SlippageUp   key.Binding
	SlippageDown key.Binding
	Sell25       key.Binding
	Sell50       key.Binding
	Sell75       key.Binding
	Sell100      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "logs"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("shift+tab", "prev tab"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),

		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		ToggleSide: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "buy/sell"),
		),
		NextWallet: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("ctrl+w", "wallet"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r", "f5"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		SlippageUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "slippage"),
		),
		SlippageDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "slippage"),
		),
		Sell25: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "sell 25%"),
		),
		Sell50: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "50%"),
		),
		Sell75: key.NewBinding(
			key.WithKeys("f3"),
			key.WithHelp("F3", "75%"),
		),
		Sell100: key.NewBinding(
			key.WithKeys("f4"),
			key.WithHelp("F4", "100%"),
		),
	}
}

// DirectoryHelp is shown under the token table.
func (k KeyMap) DirectoryHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTab, k.Search, k.Open, k.ToggleLogs, k.Quit}
}

// TradeHelp is shown under the trade panel.
func (k KeyMap) TradeHelp() []key.Binding {
	return []key.Binding{k.Submit, k.ToggleSide, k.NextWallet, k.SlippageUp, k.SlippageDown,
		k.Sell25, k.Sell50, k.Sell75, k.Sell100, k.Refresh, k.Back}
}
