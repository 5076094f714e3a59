package component

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/whaleshi/b/internal/ui/style"
)

// HelpBar shows key bindings on one line, dropping what does not fit.
type HelpBar struct {
	width int

	keyStyle  lipgloss.Style
	descStyle lipgloss.Style
	sepStyle  lipgloss.Style
}

func NewHelpBar() *HelpBar {
	palette := style.DefaultPalette()

	return &HelpBar{
		width: 80,

		keyStyle: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true),
		descStyle: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
		sepStyle: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
	}
}

func (h *HelpBar) SetWidth(width int) *HelpBar {
	h.width = width
	return h
}

func (h *HelpBar) View(bindings []key.Binding) string {
	separator := h.sepStyle.Render(" • ")
	sepWidth := lipgloss.Width(separator)

	items := make([]string, 0, len(bindings))
	used := 0
	for _, binding := range bindings {
		if !binding.Enabled() {
			continue
		}
		help := binding.Help()
		if help.Key == "" || help.Desc == "" {
			continue
		}
		item := h.keyStyle.Render(help.Key) + " " + h.descStyle.Render(help.Desc)
		w := lipgloss.Width(item) + sepWidth
		if used+w > h.width && len(items) > 0 {
			break
		}
		items = append(items, item)
		used += w
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(items, separator))
}
