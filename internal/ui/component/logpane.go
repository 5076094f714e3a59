package component

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/whaleshi/b/internal/ui/style"
	"github.com/whaleshi/b/internal/utils/logger"
)

// LogPane shows the tail of the shared log buffer.
type LogPane struct {
	buffer   *logger.LogBuffer
	viewport viewport.Model
	minLevel zapcore.Level
	visible  bool
	width    int
	height   int

	container lipgloss.Style
	title     lipgloss.Style
	timestamp lipgloss.Style
	levels    map[zapcore.Level]lipgloss.Style
}

func NewLogPane(buffer *logger.LogBuffer) *LogPane {
	palette := style.DefaultPalette()

	return &LogPane{
		buffer:   buffer,
		viewport: viewport.New(0, 0),
		minLevel: zapcore.InfoLevel,
		visible:  true,

		container: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Info).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(palette.Info).
			Bold(true),
		timestamp: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
		levels: map[zapcore.Level]lipgloss.Style{
			zapcore.DebugLevel: lipgloss.NewStyle().Foreground(palette.TextMuted),
			zapcore.InfoLevel:  lipgloss.NewStyle().Foreground(palette.Text),
			zapcore.WarnLevel:  lipgloss.NewStyle().Foreground(palette.Warning),
			zapcore.ErrorLevel: lipgloss.NewStyle().Foreground(palette.Error).Bold(true),
		},
	}
}

// SetSize sets the outer size including the border.
func (p *LogPane) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.viewport.Width = width - 4
	p.viewport.Height = height - 3 // border + title
	if p.viewport.Height < 1 {
		p.viewport.Height = 1
	}
}

func (p *LogPane) Toggle() {
	p.visible = !p.visible
}

func (p *LogPane) IsVisible() bool {
	return p.visible
}

// Height is what the pane takes from the layout.
func (p *LogPane) Height() int {
	if !p.visible {
		return 0
	}
	return p.height
}

// SetMinLevel hides entries below level.
func (p *LogPane) SetMinLevel(level zapcore.Level) {
	p.minLevel = level
}

// Refresh reloads the tail from the buffer and scrolls to the bottom.
func (p *LogPane) Refresh() {
	if p.buffer == nil {
		p.viewport.SetContent("No log buffer available")
		return
	}

	var lines []string
	for _, entry := range p.buffer.Recent(p.viewport.Height * 4) {
		if entry.Level < p.minLevel {
			continue
		}
		lines = append(lines, p.format(entry))
	}
	if len(lines) == 0 {
		p.viewport.SetContent(style.MutedStyle.Render("No logs yet"))
		return
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
	p.viewport.GotoBottom()
}

func (p *LogPane) format(entry logger.LogEntry) string {
	levelStyle, ok := p.levels[entry.Level]
	if !ok {
		levelStyle = p.levels[zapcore.ErrorLevel]
	}
	msg := entry.Message
	if entry.Logger != "" {
		msg = fmt.Sprintf("[%s] %s", entry.Logger, msg)
	}
	if errText, ok := entry.Fields["error"].(string); ok {
		msg += ": " + errText
	}
	return fmt.Sprintf("%s %s",
		p.timestamp.Render(entry.Timestamp.Format("15:04:05")),
		levelStyle.Render(msg))
}

func (p *LogPane) View() string {
	if !p.visible {
		return ""
	}
	p.Refresh()
	content := lipgloss.JoinVertical(lipgloss.Left,
		p.title.Render("Logs"),
		p.viewport.View(),
	)
	return p.container.Width(p.width - 2).Render(content)
}
